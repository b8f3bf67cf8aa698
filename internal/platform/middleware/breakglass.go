package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/platform/auth"
)

const (
	breakGlassHeader        = "X-Break-Glass"
	breakGlassMaxPerHour    = 10
	breakGlassCleanupPeriod = 5 * time.Minute
)

type breakGlassContextKey string

const (
	breakGlassKey       breakGlassContextKey = "break_glass"
	breakGlassReasonKey breakGlassContextKey = "break_glass_reason"
)

// BreakGlass implements the emergency access override. A request carrying a
// non-empty X-Break-Glass reason on a clinical path gets "admin" appended to
// its roles so role checks downstream pass, capped at 10 overrides per user
// per hour. Every activation is logged at WARN with the stated reason.
// Must sit after authentication in the chain.
func BreakGlass(logger zerolog.Logger) echo.MiddlewareFunc {
	rl := newBreakGlassRateLimit()

	go func() {
		ticker := time.NewTicker(breakGlassCleanupPeriod)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup(time.Now())
		}
	}()

	return breakGlassMiddleware(logger, rl, time.Now)
}

// breakGlassMiddleware takes the clock as a parameter so tests can pin it.
func breakGlassMiddleware(logger zerolog.Logger, rl *breakGlassRateLimit, nowFn func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isClinicalPath(req.URL.Path) {
				return next(c)
			}

			reason := strings.TrimSpace(req.Header.Get(breakGlassHeader))
			if reason == "" {
				return next(c)
			}

			ctx := req.Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "break-glass requires authentication")
			}

			now := nowFn()
			if !rl.allow(userID, now, breakGlassMaxPerHour) {
				return echo.NewHTTPError(http.StatusTooManyRequests,
					"break-glass rate limit exceeded: maximum 10 requests per user per hour")
			}

			originalRoles := auth.RolesFromContext(ctx)
			elevated := withAdminRole(originalRoles)

			ctx = context.WithValue(ctx, breakGlassKey, true)
			ctx = context.WithValue(ctx, breakGlassReasonKey, reason)
			ctx = context.WithValue(ctx, auth.UserRolesKey, elevated)
			c.SetRequest(req.WithContext(ctx))

			logger.Warn().
				Str("type", "break_glass").
				Str("user_id", userID).
				Strs("original_roles", originalRoles).
				Str("break_glass_reason", reason).
				Str("path", req.URL.Path).
				Str("method", req.Method).
				Str("remote_ip", c.RealIP()).
				Time("timestamp", now).
				Msg("break_glass_override")

			return next(c)
		}
	}
}

// isClinicalPath reports whether the path can expose patient data.
func isClinicalPath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

func withAdminRole(roles []string) []string {
	for _, r := range roles {
		if r == "admin" {
			return roles
		}
	}
	out := make([]string, 0, len(roles)+1)
	out = append(out, roles...)
	return append(out, "admin")
}

// IsBreakGlass reports whether the request ran under a break-glass override.
func IsBreakGlass(ctx context.Context) bool {
	v, _ := ctx.Value(breakGlassKey).(bool)
	return v
}

// BreakGlassReason returns the stated reason, empty when not invoked.
func BreakGlassReason(ctx context.Context) string {
	v, _ := ctx.Value(breakGlassReasonKey).(string)
	return v
}

// breakGlassRateLimit counts activations per user over a rolling hour.
type breakGlassRateLimit struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func newBreakGlassRateLimit() *breakGlassRateLimit {
	return &breakGlassRateLimit{entries: make(map[string][]time.Time)}
}

// allow prunes timestamps older than an hour, then records the request if
// the user is under maxPerHour. The caller supplies the clock.
func (rl *breakGlassRateLimit) allow(userID string, now time.Time, maxPerHour int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	pruned := pruneBefore(rl.entries[userID], now.Add(-time.Hour))
	if len(pruned) >= maxPerHour {
		rl.entries[userID] = pruned
		return false
	}
	rl.entries[userID] = append(pruned, now)
	return true
}

// cleanup drops users whose every activation has aged out.
func (rl *breakGlassRateLimit) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-time.Hour)
	for userID, stamps := range rl.entries {
		pruned := pruneBefore(stamps, cutoff)
		if len(pruned) == 0 {
			delete(rl.entries, userID)
			continue
		}
		rl.entries[userID] = pruned
	}
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
