package risk

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically drops idle entity keys from the engine's rate-limit
// state.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	grace    float64
	logger   *slog.Logger
	stop     chan struct{}
}

// NewSweeper creates a sweeper that removes keys idle for longer than the
// policy window plus grace seconds.
func NewSweeper(engine *Engine, interval time.Duration, grace float64, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		grace:    grace,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.engine.Config().RateLimitingEnabled() {
		s.logger.Info("idle-key sweeper disabled (no rate limits configured)")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.engine.Sweep(ctx, s.grace)
		}
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}
