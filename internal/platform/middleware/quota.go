package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careexit/careexit/internal/platform/auth"
)

// QuotaTier bounds how hard a class of caller may hit the API. Tiers are
// keyed by role so that automated integrations get more headroom than
// interactive clinical users.
type QuotaTier struct {
	Name       string `json:"name"`
	PerMinute  int    `json:"per_minute"`
	Burst      int    `json:"burst"`
	Concurrent int    `json:"concurrent"`
}

// QuotaDecision reports the outcome of an Allow check.
type QuotaDecision struct {
	Allowed    bool   `json:"allowed"`
	Tier       string `json:"tier"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retry_after"`
}

// QuotaUsage is the admin-facing snapshot for a single caller.
type QuotaUsage struct {
	UserID     string `json:"user_id"`
	Tier       string `json:"tier"`
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Concurrent int    `json:"concurrent"`
	MaxInFly   int    `json:"max_in_flight"`
}

type quotaWindow struct {
	count    int
	inFlight int
	resetAt  time.Time
}

// QuotaLimiter tracks per-user request counts over a rolling one-minute
// window plus an in-flight gauge. The zero value is not usable; construct
// with NewQuotaLimiter.
type QuotaLimiter struct {
	mu        sync.Mutex
	tiers     map[string]*QuotaTier
	userTiers map[string]string
	windows   map[string]*quotaWindow
	now       func() time.Time
}

func defaultQuotaTiers() []QuotaTier {
	return []QuotaTier{
		{Name: "clinician", PerMinute: 240, Burst: 40, Concurrent: 10},
		{Name: "nurse", PerMinute: 240, Burst: 40, Concurrent: 10},
		{Name: "integration", PerMinute: 1200, Burst: 200, Concurrent: 40},
		{Name: "admin", PerMinute: 600, Burst: 100, Concurrent: 20},
		{Name: "default", PerMinute: 60, Burst: 10, Concurrent: 5},
	}
}

// NewQuotaLimiter returns a limiter seeded with the role-based tiers.
func NewQuotaLimiter() *QuotaLimiter {
	q := &QuotaLimiter{
		tiers:     make(map[string]*QuotaTier),
		userTiers: make(map[string]string),
		windows:   make(map[string]*quotaWindow),
		now:       time.Now,
	}
	for _, t := range defaultQuotaTiers() {
		tier := t
		q.tiers[tier.Name] = &tier
	}
	return q
}

// RegisterTier adds or replaces a tier by name.
func (q *QuotaLimiter) RegisterTier(tier QuotaTier) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := tier
	q.tiers[t.Name] = &t
}

// AssignTier pins userID to a named tier, overriding role resolution.
func (q *QuotaLimiter) AssignTier(userID, tierName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.tiers[tierName]; !ok {
		return fmt.Errorf("quota tier %q not found", tierName)
	}
	q.userTiers[userID] = tierName
	return nil
}

// Tiers returns a copy of all registered tiers.
func (q *QuotaLimiter) Tiers() []QuotaTier {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QuotaTier, 0, len(q.tiers))
	for _, t := range q.tiers {
		out = append(out, *t)
	}
	return out
}

// tierFor resolves the tier for a user. Explicit assignment wins, then the
// first role with a matching tier, then "default". Caller holds q.mu.
func (q *QuotaLimiter) tierFor(userID string, roles []string) *QuotaTier {
	if name, ok := q.userTiers[userID]; ok {
		if t, ok := q.tiers[name]; ok {
			return t
		}
	}
	for _, r := range roles {
		if t, ok := q.tiers[r]; ok {
			return t
		}
	}
	return q.tiers["default"]
}

// Allow records one request for userID and reports whether it fits in the
// current window. On an allowed request the in-flight gauge is incremented;
// the caller must pair it with Release.
func (q *QuotaLimiter) Allow(userID string, roles []string) QuotaDecision {
	q.mu.Lock()
	defer q.mu.Unlock()

	tier := q.tierFor(userID, roles)
	now := q.now()

	w, ok := q.windows[userID]
	if !ok || now.After(w.resetAt) {
		inFlight := 0
		if ok {
			inFlight = w.inFlight
		}
		w = &quotaWindow{resetAt: now.Add(time.Minute), inFlight: inFlight}
		q.windows[userID] = w
	}

	limit := tier.PerMinute + tier.Burst
	d := QuotaDecision{Tier: tier.Name, Limit: limit}

	if tier.Concurrent > 0 && w.inFlight >= tier.Concurrent {
		d.RetryAfter = 1
		return d
	}
	if w.count >= limit {
		d.RetryAfter = secondsUntil(w.resetAt, now)
		return d
	}

	w.count++
	w.inFlight++
	d.Allowed = true
	d.Remaining = limit - w.count
	return d
}

// Release frees the in-flight slot taken by a successful Allow.
func (q *QuotaLimiter) Release(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.windows[userID]; ok && w.inFlight > 0 {
		w.inFlight--
	}
}

// Usage snapshots the current window for a user.
func (q *QuotaLimiter) Usage(userID string, roles []string) QuotaUsage {
	q.mu.Lock()
	defer q.mu.Unlock()

	tier := q.tierFor(userID, roles)
	u := QuotaUsage{
		UserID:   userID,
		Tier:     tier.Name,
		Limit:    tier.PerMinute + tier.Burst,
		MaxInFly: tier.Concurrent,
	}
	if w, ok := q.windows[userID]; ok && !q.now().After(w.resetAt) {
		u.Used = w.count
		u.Concurrent = w.inFlight
	}
	return u
}

// Reset clears the window for a user.
func (q *QuotaLimiter) Reset(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.windows, userID)
}

// Sweep drops windows that expired before cutoff. Callers run it on a timer.
func (q *QuotaLimiter) Sweep() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for id, w := range q.windows {
		if now.After(w.resetAt) && w.inFlight == 0 {
			delete(q.windows, id)
		}
	}
}

// Quota returns middleware enforcing the per-user quota. Identity comes from
// the authenticated user, falling back to the caller IP for unauthenticated
// paths. Standard X-RateLimit headers are set on every response.
func Quota(limiter *QuotaLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				userID = c.RealIP()
			}
			roles := auth.RolesFromContext(ctx)

			d := limiter.Allow(userID, roles)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(d.RetryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "quota exceeded")
			}

			// Released via defer so a panicking handler cannot strand the
			// in-flight slot before the outer recovery middleware runs.
			defer limiter.Release(userID)
			return next(c)
		}
	}
}

// QuotaHandler exposes admin endpoints for inspecting and tuning quotas.
type QuotaHandler struct {
	limiter *QuotaLimiter
}

func NewQuotaHandler(limiter *QuotaLimiter) *QuotaHandler {
	return &QuotaHandler{limiter: limiter}
}

func (h *QuotaHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/quotas/tiers", h.ListTiers)
	g.POST("/quotas/tiers", h.UpsertTier)
	g.GET("/quotas/users/:id", h.UserUsage)
	g.PUT("/quotas/users/:id/tier", h.AssignUserTier)
	g.POST("/quotas/users/:id/reset", h.ResetUser)
}

func (h *QuotaHandler) ListTiers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.limiter.Tiers())
}

func (h *QuotaHandler) UpsertTier(c echo.Context) error {
	var tier QuotaTier
	if err := c.Bind(&tier); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tier: "+err.Error())
	}
	if tier.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tier name is required")
	}
	h.limiter.RegisterTier(tier)
	return c.JSON(http.StatusOK, tier)
}

func (h *QuotaHandler) UserUsage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.limiter.Usage(c.Param("id"), nil))
}

func (h *QuotaHandler) AssignUserTier(c echo.Context) error {
	var body struct {
		Tier string `json:"tier"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body: "+err.Error())
	}
	if err := h.limiter.AssignTier(c.Param("id"), body.Tier); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"user_id": c.Param("id"),
		"tier":    body.Tier,
	})
}

func (h *QuotaHandler) ResetUser(c echo.Context) error {
	h.limiter.Reset(c.Param("id"))
	return c.JSON(http.StatusOK, map[string]string{
		"user_id": c.Param("id"),
		"status":  "reset",
	})
}

// secondsUntil reports whole seconds from now until t, minimum 1.
func secondsUntil(t, now time.Time) int {
	s := int(t.Sub(now).Seconds())
	if s < 1 {
		return 1
	}
	return s
}
