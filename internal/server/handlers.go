package server

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/risk"
	"github.com/mbd888/fraudgate/internal/traces"
	"github.com/mbd888/fraudgate/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// DecideRequest is the body of POST /v1/decide. risk_score is required.
type DecideRequest struct {
	event.Event
	RiskScore *float64 `json:"risk_score"`
}

// DecideResponse is returned by POST /v1/decide.
type DecideResponse struct {
	ID             string        `json:"id"`
	Decision       risk.Decision `json:"decision"`
	Reasons        []string      `json:"reasons"`
	PolicyTriggers []string      `json:"policy_triggers"`
	RiskScore      float64       `json:"risk_score"`
}

// decideHandler handles POST /v1/decide
func (s *Server) decideHandler(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if req.RiskScore == nil {
		errs := validation.ValidationErrors{{Field: "risk_score", Message: "is required"}}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	ev := req.Event
	ev.RiskScore = *req.RiskScore
	if err := ev.Validate(s.now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
			"details": err,
		})
		return
	}
	ev.MessageText = validation.SanitizeString(ev.MessageText, validation.MaxStringLength)

	ctx, span := traces.StartSpan(c.Request.Context(), "risk.Decide",
		traces.UserID(ev.UserID),
		traces.RiskScore(ev.RiskScore),
	)
	defer span.End()

	a := s.engine.Evaluate(ctx, &ev)
	span.SetAttributes(
		traces.DecisionID(a.ID),
		traces.Decision(string(a.Decision)),
		traces.Triggers(a.Triggers),
	)

	c.JSON(http.StatusOK, DecideResponse{
		ID:             a.ID,
		Decision:       a.Decision,
		Reasons:        a.Reasons,
		PolicyTriggers: a.Triggers,
		RiskScore:      a.RiskScore,
	})
}

// policyHandler handles GET /v1/policy
func (s *Server) policyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policy": s.policy})
}

// stateHandler handles GET /v1/state
func (s *Server) stateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rate_limiting": s.policy.RateLimitingEnabled(),
		"tracked_keys":  s.engine.Stats(),
		"api_clients":   s.rateLimiter.Clients(),
	})
}

// entityStateHandler handles GET /v1/state/:dimension/:key and reports how
// many events the key has in its current window.
func (s *Server) entityStateHandler(c *gin.Context) {
	dim := policy.Dimension(c.Param("dimension"))
	if !slices.Contains(policy.Dimensions, dim) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_dimension",
			"message": "dimension must be one of user, device, ip",
		})
		return
	}

	key := c.Param("key")
	c.JSON(http.StatusOK, gin.H{
		"dimension": dim,
		"key":       key,
		"count":     s.engine.State().Count(dim, key),
	})
}

// resetStateHandler handles POST /v1/admin/state/reset
func (s *Server) resetStateHandler(c *gin.Context) {
	s.engine.Reset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":       "reset",
		"tracked_keys": s.engine.Stats(),
	})
}

// decisionsHandler handles GET /v1/decisions?limit=&user_id=
func (s *Server) decisionsHandler(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxListLimit)
	}

	var (
		items []*risk.Assessment
		err   error
	)
	if userID := c.Query("user_id"); userID != "" {
		items, err = s.store.ListByUser(c.Request.Context(), userID, limit)
	} else {
		items, err = s.store.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list decisions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"decisions": items, "count": len(items)})
}

// requireAdmin checks the X-Admin-Secret header against secret. With no
// secret configured (development) every request passes.
func requireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Secret")
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "X-Admin-Secret header required",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}
