package crowdfund

import "context"

var decisionCtxKey = &contextKey{"decision"}
var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithDecisionContext sets the guard Decision in the given context
func WithDecisionContext(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionCtxKey, d)
}

// GetDecision extracts the guard Decision from the context
func GetDecision(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionCtxKey).(Decision)
	return d, ok
}

// WithIdentityContext sets the display Identity in the given context
func WithIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// GetIdentity extracts the display Identity from the context
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(Identity)
	return id, ok
}

// RoleFromContext returns the role of an authorized decision.
func RoleFromContext(ctx context.Context) Role {
	d, ok := GetDecision(ctx)
	if !ok || !d.Allowed() {
		return RoleNone
	}
	return d.Role
}
