package crowdfund

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging contract used across the client. Args are key/value
// pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Config holds client options
type Config interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetRateLimit() float64
	GetRateBurst() int
	GetDefaultPageSize() int
	GetRedirectCookie() string
	GetRoutes() Routes
	GetDebug() bool
}

// AuthClient is the external authentication collaborator.
type AuthClient interface {
	Login(ctx context.Context, req LoginRequest) (string, error)
	Logout(ctx context.Context, token string) error
}

// SessionPersistence keeps the credential across process restarts.
type SessionPersistence interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SessionReader exposes the read side of the session store.
type SessionReader interface {
	Snapshot() Session
}

// SessionTerminator ends a session as a reaction to a guard decision.
type SessionTerminator interface {
	ForceLogout(ctx context.Context, reason string)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] CROWDFUND " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] CROWDFUND " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] CROWDFUND " + line(msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] CROWDFUND " + line(msg, args))
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}
