package apiclient

import (
	"context"
	"net/http"

	crowdfund "github.com/goliatone/go-crowdfund"
	goerrors "github.com/goliatone/go-errors"
)

var _ crowdfund.AuthClient = (*AuthAPI)(nil)

// Auth endpoint paths.
const (
	PathLogin     = "/auth/login"
	PathLogout    = "/auth/logout"
	PathVerifyOTP = "/auth/verify-otp"
	PathResendOTP = "/auth/resend-otp"
)

// AuthAPI is the authentication collaborator of the session store.
type AuthAPI struct {
	client *Client
}

// NewAuthAPI returns the auth endpoints of client.
func NewAuthAPI(client *Client) *AuthAPI {
	return &AuthAPI{client: client}
}

type loginResponse struct {
	Token            string `json:"token"`
	AccessToken      string `json:"accessToken"`
	AccessTokenSnake string `json:"access_token"`
}

func (r loginResponse) credential() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.AccessToken != "":
		return r.AccessToken
	default:
		return r.AccessTokenSnake
	}
}

// Login exchanges credentials for a bearer token.
func (a *AuthAPI) Login(ctx context.Context, req crowdfund.LoginRequest) (string, error) {
	var res loginResponse
	err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body: map[string]any{
			"email":      req.Email,
			"password":   req.Password,
			"rememberMe": req.RememberMe,
		},
	}, &res)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuth &&
			!crowdfund.IsAccountNotActivated(err) && richErr.TextCode == "" {
			richErr.TextCode = crowdfund.TextCodeInvalidCredentials
		}
		return "", err
	}
	return res.credential(), nil
}

// Logout invalidates token server side. The token is passed explicitly since
// the session may already be clearing.
func (a *AuthAPI) Logout(ctx context.Context, token string) error {
	return a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogout,
		Token:  token,
	}, nil)
}

// VerifyOTPRequest activates an account with the emailed code.
type VerifyOTPRequest struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// VerifyOTP activates the account.
func (a *AuthAPI) VerifyOTP(ctx context.Context, req VerifyOTPRequest) error {
	return a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathVerifyOTP,
		Body:   req,
	}, nil)
}

// ResendOTP asks the backend to send a new code.
func (a *AuthAPI) ResendOTP(ctx context.Context, email string) error {
	return a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathResendOTP,
		Body:   map[string]string{"email": email},
	}, nil)
}
