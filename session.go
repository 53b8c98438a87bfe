package crowdfund

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
)

// Session is a point in time copy of the session state.
type Session struct {
	Token         string `json:"-"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// Payload decodes the held credential.
func (s Session) Payload() *Payload {
	return Decode(s.Token)
}

// HasCredential reports whether the session can be used for authorization.
func (s Session) HasCredential() bool {
	return s.Authenticated && s.Token != ""
}

// LoginRequest payload
type LoginRequest struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me,omitempty"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SessionOption customizes the session store.
type SessionOption func(*SessionStore)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionPersistence keeps the credential in a side store.
func WithSessionPersistence(p SessionPersistence) SessionOption {
	return func(s *SessionStore) {
		s.persistence = p
	}
}

// WithSessionActivitySink configures where session events go.
func WithSessionActivitySink(sink ActivitySink) SessionOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock Clock) SessionOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogoutHook registers a function run after local teardown, e.g. to
// wipe cached resources.
func WithLogoutHook(hook func(ctx context.Context)) SessionOption {
	return func(s *SessionStore) {
		if hook != nil {
			s.logoutHooks = append(s.logoutHooks, hook)
		}
	}
}

// WithSessionDebug dumps decoded claims on login.
func WithSessionDebug(debug bool) SessionOption {
	return func(s *SessionStore) {
		s.debug = debug
	}
}

// SessionStore holds the current credential. Create one per client process
// and inject it; it has no package level state.
type SessionStore struct {
	client       AuthClient
	persistence  SessionPersistence
	activitySink ActivitySink
	logger       Logger
	now          Clock
	logoutHooks  []func(ctx context.Context)
	debug        bool

	mu            sync.RWMutex
	token         string
	authenticated bool
	lastErr       error
}

// NewSessionStore returns an empty, unauthenticated store.
func NewSessionStore(client AuthClient, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		client:       client,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Login authenticates against the auth collaborator. On failure the previous
// state is kept and the error is returned to the caller.
func (s *SessionStore) Login(ctx context.Context, req LoginRequest) error {
	if err := req.Validate(); err != nil {
		s.setError(err)
		return err
	}

	token, err := s.client.Login(ctx, req)
	if err == nil && token == "" {
		err = ErrMissingToken
	}
	if err != nil {
		s.logger.Error("login failed", "email", req.Email, "error", err)
		s.setError(err)
		s.emit(ctx, ActivityEventLoginFailure, nil, map[string]any{
			"email": req.Email,
			"error": err.Error(),
		})
		return err
	}

	s.mu.Lock()
	s.token = token
	s.authenticated = true
	s.lastErr = nil
	s.mu.Unlock()

	payload := Decode(token)
	if s.debug {
		s.logger.Debug("login claims", "claims", print.MaybePrettyJSON(payload.Raw()))
	}

	if s.persistence != nil {
		if err := s.persistence.Save(ctx, token); err != nil {
			s.logger.Warn("unable to persist session", "error", err)
		}
	}

	s.emit(ctx, ActivityEventLoginSuccess, payload, map[string]any{
		"email": req.Email,
	})
	return nil
}

// Logout notifies the backend best-effort, then always clears the local
// session. Calling it on an empty session is a no-op.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.logout(ctx, ActivityEventLogout, nil)
	return nil
}

// ForceLogout tears the session down as a reaction (e.g. expiry) and records
// ErrSessionExpired as the last error.
func (s *SessionStore) ForceLogout(ctx context.Context, reason string) {
	s.logout(ctx, ActivityEventSessionExpired, map[string]any{"reason": reason})
	s.setError(ErrSessionExpired)
}

func (s *SessionStore) logout(ctx context.Context, event ActivityEventType, meta map[string]any) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != "" && s.client != nil {
		if err := s.client.Logout(ctx, token); err != nil {
			s.logger.Warn("backend logout failed, clearing local session", "error", err)
			s.setError(err)
		}
	}

	s.mu.Lock()
	s.token = ""
	s.authenticated = false
	s.mu.Unlock()

	if s.persistence != nil {
		if err := s.persistence.Clear(ctx); err != nil {
			s.logger.Warn("unable to clear persisted session", "error", err)
		}
	}

	for _, hook := range s.logoutHooks {
		hook(ctx)
	}

	if token != "" {
		s.emit(ctx, event, Decode(token), meta)
	}
}

// Restore loads a credential a previous login persisted.
func (s *SessionStore) Restore(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	token, err := s.persistence.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.authenticated = true
	s.mu.Unlock()

	s.emit(ctx, ActivityEventRestored, Decode(token), nil)
	return nil
}

// ClearError forgets the last error without touching the session.
func (s *SessionStore) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// LastError returns the last recorded error.
func (s *SessionStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Token returns the current credential. API clients read it on every call.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated returns the flag set by login. It does not check expiry.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		Token:         s.token,
		Authenticated: s.authenticated,
		Error:         MessageOf(s.lastErr),
	}
}

// Payload decodes the current credential, nil when there is none.
func (s *SessionStore) Payload() *Payload {
	return Decode(s.Token())
}

// Role resolves the current role.
func (s *SessionStore) Role() Role {
	snap := s.Snapshot()
	return RoleOf(snap.Payload(), snap.HasCredential())
}

// Identity derives the current display identity.
func (s *SessionStore) Identity() Identity {
	return IdentityOf(s.Payload())
}

// Expired checks the current credential against the store clock.
func (s *SessionStore) Expired() bool {
	return IsExpired(s.Payload(), s.now())
}

func (s *SessionStore) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *SessionStore) emit(ctx context.Context, eventType ActivityEventType, p *Payload, meta map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Subject:    SubjectOf(p),
		Role:       RoleOf(p, p != nil),
		Metadata:   meta,
		OccurredAt: s.now(),
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "event", eventType, "error", err)
	}
}
