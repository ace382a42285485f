package risk

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/idgen"
	"github.com/mbd888/fraudgate/internal/logging"
	"github.com/mbd888/fraudgate/internal/metrics"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/ratelimit"
	"github.com/mbd888/fraudgate/internal/window"
)

// Engine binds one policy and one rate-limit state for the lifetime of a
// service instance. It is safe for concurrent use.
type Engine struct {
	cfg    *policy.Config
	state  *ratelimit.State
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a decision engine with fresh rate-limit state. store may
// be nil to disable the audit log. The state tracks key idleness on the
// engine clock.
func NewEngine(cfg *policy.Config, store Store) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	e.state = ratelimit.NewState(window.WithClock(func() time.Time { return e.now() }))
	return e
}

// WithLogger sets the logger used when no request logger is in context.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	e.logger = l
	return e
}

// WithClock overrides the clock used for missing event timestamps and key
// idleness. Call before the engine is shared.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Config returns the bound policy.
func (e *Engine) Config() *policy.Config { return e.cfg }

// State returns the bound rate-limit state.
func (e *Engine) State() *ratelimit.State { return e.state }

// Evaluate decides ev using its own risk score. A zero event timestamp is
// replaced by the engine clock. The assessment is recorded in the audit
// store when one is configured.
func (e *Engine) Evaluate(ctx context.Context, ev *event.Event) *Assessment {
	start := time.Now()

	normalized := ev.Normalize()
	if normalized.EventTS == 0 {
		normalized.EventTS = float64(e.now().UnixNano()) / 1e9
	}

	result := Decide(normalized.RiskScore, &normalized, e.cfg, e.state)
	elapsed := time.Since(start)

	assessment := &Assessment{
		ID:          idgen.WithPrefix("dec_"),
		UserID:      normalized.UserID,
		DeviceID:    normalized.DeviceID,
		IPID:        normalized.IPID,
		RiskScore:   normalized.RiskScore,
		EventTS:     normalized.EventTS,
		EvaluatedAt: e.now(),
		Result:      result,
	}

	metrics.ObserveDecision(string(result.Decision), result.Triggers, elapsed.Seconds())
	e.log(ctx).Debug("event evaluated",
		"id", assessment.ID,
		"decision", result.Decision,
		"triggers", result.Triggers,
		"user_id", normalized.UserID,
		"latency_us", elapsed.Microseconds(),
	)

	if e.store != nil {
		if err := e.store.Record(ctx, assessment); err != nil {
			e.log(ctx).Warn("failed to record assessment", "id", assessment.ID, "error", err)
		}
	}
	return assessment
}

// Reset clears every rate-limit counter. Safe to call while evaluations are
// in flight.
func (e *Engine) Reset(ctx context.Context) {
	e.state.Reset()
	metrics.StateResetsTotal.Inc()
	e.publishStats()
	e.log(ctx).Info("rate-limit state reset")
}

// Sweep removes keys not recorded for longer than the policy window plus
// grace seconds on the engine clock. It returns the number of keys removed.
func (e *Engine) Sweep(ctx context.Context, grace float64) int {
	if !e.cfg.RateLimitingEnabled() {
		return 0
	}
	idle := time.Duration((float64(e.cfg.RateLimits.WindowSeconds) + grace) * float64(time.Second))

	total := 0
	for _, n := range e.state.Sweep(idle) {
		total += n
	}
	if total > 0 {
		metrics.SweptKeysTotal.Add(float64(total))
		e.log(ctx).Info("idle entity keys swept", "removed", total)
	}
	e.publishStats()
	return total
}

// Stats returns the number of tracked keys per dimension.
func (e *Engine) Stats() map[policy.Dimension]int {
	return e.publishStats()
}

func (e *Engine) publishStats() map[policy.Dimension]int {
	stats := e.state.Stats()
	gauge := make(map[string]int, len(stats))
	for dim, n := range stats {
		gauge[string(dim)] = n
	}
	metrics.SetTrackedKeys(gauge)
	return stats
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	return logging.Or(ctx, e.logger)
}
