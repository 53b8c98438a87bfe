package crowdfund

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAccountNotActivated = "ACCOUNT_NOT_ACTIVATED"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeSessionExpired      = "SESSION_EXPIRED"
)

// ErrNotAuthenticated is returned when an operation needs a credential and none is held
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrMissingToken is returned when the auth collaborator answers without a credential
var ErrMissingToken = errors.New("login response carried no token")

// ErrInvalidCredentials is the normalized login rejection.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is recorded by ForceLogout.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// inactive account markers as returned by the API (fr and en)
var inactiveMarkers = []string{
	"non activé",
	"non active",
	"not activated",
	"not active",
	"inactive",
}

// IsAccountNotActivated reports whether a login failure means the account
// exists but has not been activated yet.
func IsAccountNotActivated(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.TextCode == TextCodeAccountNotActivated {
			return true
		}
		for _, key := range []string{"error_code", "detail", "message"} {
			if v, ok := richErr.Metadata[key].(string); ok {
				if v == TextCodeAccountNotActivated || mentionsInactive(v) {
					return true
				}
			}
		}
		return mentionsInactive(richErr.Message)
	}

	return mentionsInactive(err.Error())
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return errors.Is(err, ErrNotAuthenticated)
}

// MessageOf returns the user facing message for err, empty for nil.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

func mentionsInactive(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range inactiveMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
