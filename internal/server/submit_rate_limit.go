package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/alimia7/achatons/internal/observability/logger"
	"github.com/alimia7/achatons/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type submitRateLimitKey struct {
	UserID string `json:"user_id"`
}

// SubmitRateLimit throttles participation submissions per user and per offer.
// A limiter backend failure rejects the request with 503 rather than letting
// unthrottled traffic through.
func (s *Server) SubmitRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.submitLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID, err := readSubmitUserID(c)
		if err != nil {
			logger.FromContext(ctx).Warn("submit rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		decision, err := s.submitLimiter.Allow(ctx, c.Param("id"), userID)
		if err != nil {
			logger.FromContext(ctx).Warn("submit rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !decision.Allowed {
			s.denySubmit(c, decision)
			return
		}

		c.Next()
	}
}

func (s *Server) denySubmit(c *gin.Context, decision ratelimit.Decision) {
	route := c.FullPath()
	logger.FromContext(c.Request.Context()).Warn("submit rate limit exceeded",
		zap.String("reason", decision.Reason),
		zap.String("offer_id", c.Param("id")),
	)
	s.httpMetrics.IncRateLimited(route, decision.Reason)

	retryAfter := 1
	if decision.Result != nil && decision.Result.RetryAfter > 0 {
		retryAfter = int(math.Ceil(decision.Result.RetryAfter.Seconds()))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", decision.Reason)
	AbortWithError(c, ErrRateLimited)
}

func readSubmitUserID(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload submitRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		// the handler reports malformed bodies
		return "", nil
	}
	return strings.TrimSpace(payload.UserID), nil
}
