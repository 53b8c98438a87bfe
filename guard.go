package crowdfund

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GuardState is the outcome of evaluating a protected view.
type GuardState int

const (
	StateAuthorized GuardState = iota
	StateUnauthenticated
	StateExpired
	StateUnauthorized
)

func (s GuardState) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateExpired:
		return "expired"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Decision is the pure result of a guard evaluation.
type Decision struct {
	State    GuardState
	Role     Role
	Redirect string
	// Token identifies the credential the decision was made for.
	Token string
}

// Allowed reports whether the protected content may render.
func (d Decision) Allowed() bool {
	return d.State == StateAuthorized
}

// RememberPath reports whether the attempted path should be kept for the
// post-login return.
func (d Decision) RememberPath() bool {
	return d.State == StateUnauthenticated || d.State == StateExpired
}

// Guard evaluates access to protected views.
type Guard struct {
	Routes Routes
	Now    Clock
}

// NewGuard returns a guard using the default routes and wall clock.
func NewGuard() *Guard {
	return &Guard{Routes: DefaultRoutes(), Now: time.Now}
}

// Evaluate computes the decision for a session. Checks run in order:
// missing session, expiry, role. It has no side effects.
func (g *Guard) Evaluate(s Session, allowed []Role) Decision {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	login := g.Routes.LoginPath()

	if !s.HasCredential() {
		return Decision{State: StateUnauthenticated, Redirect: login}
	}

	payload := s.Payload()
	if IsExpired(payload, now()) {
		return Decision{State: StateExpired, Redirect: login, Token: s.Token}
	}

	role := RoleOf(payload, true)
	if len(allowed) > 0 && !HasRole(role, allowed) {
		return Decision{State: StateUnauthorized, Role: role, Redirect: login, Token: s.Token}
	}

	return Decision{State: StateAuthorized, Role: role, Token: s.Token}
}

// Evaluate runs a default guard.
func Evaluate(s Session, allowed []Role, now time.Time) Decision {
	g := NewGuard()
	g.Now = func() time.Time { return now }
	return g.Evaluate(s, allowed)
}

// Notice is a one time message for the user.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	if f != nil {
		f(ctx, notice)
	}
}

// NoticeQueue is a bounded in-memory notifier drained by the UI.
type NoticeQueue struct {
	mu      sync.Mutex
	notices []Notice
	limit   int
}

// NewNoticeQueue keeps at most limit pending notices.
func NewNoticeQueue(limit int) *NoticeQueue {
	if limit <= 0 {
		limit = 20
	}
	return &NoticeQueue{limit: limit}
}

// Notify implements Notifier. The oldest notice is dropped when full.
func (q *NoticeQueue) Notify(_ context.Context, notice Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, notice)
	if len(q.notices) > q.limit {
		q.notices = q.notices[len(q.notices)-q.limit:]
	}
}

// Drain returns and forgets the pending notices.
func (q *NoticeQueue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// ReactorOption customizes the guard reactor.
type ReactorOption func(*GuardReactor)

// WithReactorLogger sets the logger.
func WithReactorLogger(logger Logger) ReactorOption {
	return func(r *GuardReactor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReactorActivitySink records denials.
func WithReactorActivitySink(sink ActivitySink) ReactorOption {
	return func(r *GuardReactor) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithReactorClock injects a custom clock (useful for tests).
func WithReactorClock(clock Clock) ReactorOption {
	return func(r *GuardReactor) {
		if clock != nil {
			r.now = clock
		}
	}
}

// GuardReactor runs the side effects of guard decisions. It remembers the
// last condition it acted on, so re-evaluating the same condition does not
// repeat the effect.
type GuardReactor struct {
	session      SessionTerminator
	notifier     Notifier
	activitySink ActivitySink
	logger       Logger
	now          Clock

	mu   sync.Mutex
	last string
}

// NewGuardReactor wires the reactor to the session and notifier.
func NewGuardReactor(session SessionTerminator, notifier Notifier, opts ...ReactorOption) *GuardReactor {
	r := &GuardReactor{
		session:      session,
		notifier:     notifier,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// React must run after the decision has been rendered (redirect written).
func (r *GuardReactor) React(ctx context.Context, path string, d Decision) {
	key := conditionKey(path, d)

	r.mu.Lock()
	if key == "" {
		r.last = ""
		r.mu.Unlock()
		return
	}
	if key == r.last {
		r.mu.Unlock()
		return
	}
	r.last = key
	r.mu.Unlock()

	switch d.State {
	case StateExpired:
		r.logger.Info("credential expired, forcing logout", "path", path)
		if r.session != nil {
			r.session.ForceLogout(ctx, "expired")
		}
	case StateUnauthorized:
		r.logger.Info("access denied", "path", path, "role", d.Role)
		if r.notifier != nil {
			r.notifier.Notify(ctx, Notice{
				Level:   "error",
				Message: "You do not have access to this page.",
				At:      r.now(),
			})
		}
		event := ActivityEvent{
			EventType:  ActivityEventAccessDenied,
			Role:       d.Role,
			Subject:    SubjectOf(Decode(d.Token)),
			Metadata:   map[string]any{"path": path},
			OccurredAt: r.now(),
		}
		if err := r.activitySink.Record(ctx, event); err != nil {
			r.logger.Warn("activity sink error", "event", event.EventType, "error", err)
		}
	}
}

func conditionKey(path string, d Decision) string {
	switch d.State {
	case StateExpired:
		return fmt.Sprintf("expired|%s", d.Token)
	case StateUnauthorized:
		return fmt.Sprintf("denied|%s|%s|%s", d.Token, path, d.Role)
	default:
		return ""
	}
}
