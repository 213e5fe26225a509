// Package triallimit decides whether an anonymous caller may use a gated
// tool, based on a rolling window over the persisted trial usage log.
package triallimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/internal/pkg/entitlements"
)

const (
	DefaultLimitPerIdentity = 5
	DefaultWindow           = 24 * time.Hour
)

// State is derived from the windowed count on every check and never stored.
type State string

const (
	StateFresh         State = "fresh"
	StatePartiallyUsed State = "partially_used"
	StateExhausted     State = "exhausted"
	StateBlocked       State = "blocked"
	StateUnknown       State = "unknown"
)

// Result is the outcome of Check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Message   string    `json:"message"`
	State     State     `json:"state"`
}

// Config is fixed at construction.
type Config struct {
	LimitPerIdentity int
	Window           time.Duration
	BlockedTools     []entitlements.Tool
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		LimitPerIdentity: DefaultLimitPerIdentity,
		Window:           DefaultWindow,
		BlockedTools:     entitlements.AuthRequiredTools(),
	}
}

// Store is the persisted usage log. repository.TrialUsageRepository satisfies it.
type Store interface {
	Create(ctx context.Context, usage *models.TrialUsage) error
	CountSince(ctx context.Context, ip string, since time.Time) (int64, error)
	OldestSince(ctx context.Context, ip string, since time.Time) (*models.TrialUsage, error)
	ListSince(ctx context.Context, ip string, since time.Time) ([]models.TrialUsage, error)
}

// Limiter applies Config to a Store. It holds no mutable state and is safe
// for concurrent use; concurrent check/record pairs from one address may
// overshoot the limit slightly.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	blocked map[entitlements.Tool]struct{}
	now     func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter. Zero limit or window fall back to the defaults.
func New(store Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		limit:   cfg.LimitPerIdentity,
		window:  cfg.Window,
		blocked: make(map[entitlements.Tool]struct{}, len(cfg.BlockedTools)),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if l.limit <= 0 {
		l.limit = DefaultLimitPerIdentity
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	for _, t := range cfg.BlockedTools {
		l.blocked[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the number of trial uses per address and window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the rolling window length.
func (l *Limiter) Window() time.Duration { return l.window }

// IsBlocked reports whether the tool is never available as a trial.
func (l *Limiter) IsBlocked(tool entitlements.Tool) bool {
	_, ok := l.blocked[tool]
	return ok
}

// Check evaluates whether ip may use tool now. It never returns an error:
// an unknown address fails closed, an unreachable store fails open with a
// single remaining use.
func (l *Limiter) Check(ctx context.Context, tool entitlements.Tool, ip string) Result {
	if l.IsBlocked(tool) {
		return Result{
			Allowed: false,
			Message: "This tool requires a free account. Sign in to use it.",
			State:   StateBlocked,
		}
	}

	now := l.now()
	if ip == "" {
		return Result{
			Allowed:   false,
			ResetTime: now.Add(l.window),
			Message:   "We could not verify your trial eligibility. Sign in to continue.",
			State:     StateUnknown,
		}
	}

	since := now.Add(-l.window)
	count, err := l.store.CountSince(ctx, ip, since)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Str("tool", string(tool)).Msg("[TrialLimit] usage lookup failed, allowing one use")
		return Result{
			Allowed:   true,
			Remaining: 1,
			ResetTime: now.Add(l.window),
			Message:   "Trial usage could not be verified right now. You can continue for the moment.",
			State:     StateUnknown,
		}
	}

	used := int(count)
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   used < l.limit,
		Remaining: remaining,
		ResetTime: l.resetTime(ctx, ip, since, now, used),
		State:     l.state(used),
	}

	if res.Allowed {
		res.Message = fmt.Sprintf("You have %d of %d free uses left.", remaining, l.limit)
	} else {
		res.Message = fmt.Sprintf("You have used all %d free uses. Sign in to keep going or try again after %s.",
			l.limit, res.ResetTime.Format("Jan 2, 15:04 MST"))
	}
	return res
}

// resetTime is when the oldest in-window use ages out, so it matches the
// rolling window that Check enforces.
func (l *Limiter) resetTime(ctx context.Context, ip string, since, now time.Time, used int) time.Time {
	if used == 0 {
		return now.Add(l.window)
	}
	oldest, err := l.store.OldestSince(ctx, ip, since)
	if err != nil || oldest == nil {
		if err != nil {
			log.Debug().Err(err).Str("ip", ip).Msg("[TrialLimit] oldest usage lookup failed")
		}
		return now.Add(l.window)
	}
	return oldest.CreatedAt.UTC().Add(l.window)
}

func (l *Limiter) state(used int) State {
	switch {
	case used == 0:
		return StateFresh
	case used < l.limit:
		return StatePartiallyUsed
	default:
		return StateExhausted
	}
}

// Record appends one usage row. Failures are logged and swallowed so a
// store outage never blocks the tool itself.
func (l *Limiter) Record(ctx context.Context, tool entitlements.Tool, ip, userAgent string) {
	if ip == "" {
		log.Debug().Str("tool", string(tool)).Msg("[TrialLimit] skipping record without client address")
		return
	}
	if len(userAgent) > 512 {
		userAgent = userAgent[:512]
	}

	usage := &models.TrialUsage{
		IPAddress: ip,
		Tool:      string(tool),
		UserAgent: userAgent,
		Success:   true,
		CreatedAt: l.now(),
	}
	if err := l.store.Create(ctx, usage); err != nil {
		log.Error().Err(err).Str("ip", ip).Str("tool", string(tool)).Msg("[TrialLimit] failed to record trial usage")
	}
}

// Usage lists the in-window rows for ip, newest first.
func (l *Limiter) Usage(ctx context.Context, ip string) ([]models.TrialUsage, error) {
	return l.store.ListSince(ctx, ip, l.now().Add(-l.window))
}
