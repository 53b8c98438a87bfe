package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/apiclient"
	"github.com/goliatone/go-crowdfund/platform"
	"github.com/goliatone/go-crowdfund/web"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu      sync.Mutex
	token   string
	err     error
	logouts int
}

func (f *fakeAuth) Login(context.Context, crowdfund.LoginRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.err
}

func (f *fakeAuth) Logout(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

type fakeOTP struct {
	verified []apiclient.VerifyOTPRequest
	resent   []string
}

func (f *fakeOTP) VerifyOTP(_ context.Context, req apiclient.VerifyOTPRequest) error {
	f.verified = append(f.verified, req)
	return nil
}

func (f *fakeOTP) ResendOTP(_ context.Context, email string) error {
	f.resent = append(f.resent, email)
	return nil
}

type harness struct {
	app     *fiber.App
	auth    *fakeAuth
	otp     *fakeOTP
	session *crowdfund.SessionStore
	stores  *platform.Stores

	mu       sync.Mutex
	apiCalls []*http.Request
}

func (h *harness) calls() []*http.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*http.Request(nil), h.apiCalls...)
}

func newHarness(t *testing.T, api http.HandlerFunc, opts ...web.Option) *harness {
	t.Helper()
	h := &harness{auth: &fakeAuth{}, otp: &fakeOTP{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.apiCalls = append(h.apiCalls, r.Clone(context.Background()))
		h.mu.Unlock()
		if api == nil {
			http.NotFound(w, r)
			return
		}
		api(w, r)
	}))
	t.Cleanup(srv.Close)

	h.session = crowdfund.NewSessionStore(h.auth, crowdfund.WithLogoutHook(func(ctx context.Context) {
		h.stores.Reset(ctx)
	}))

	client, err := apiclient.New(srv.URL, h.session)
	require.NoError(t, err)
	h.stores = platform.NewStores(client, platform.WithPageSize(5))

	opts = append([]web.Option{web.WithMetrics(false)}, opts...)
	h.app = web.New(web.Deps{
		Session: h.session,
		OTP:     h.otp,
		Stores:  h.stores,
	}, opts...).App()
	return h
}

func (h *harness) login(t *testing.T, token string) {
	t.Helper()
	h.auth.token = token
	require.NoError(t, h.session.Login(context.Background(), crowdfund.LoginRequest{
		Email:    "user@example.com",
		Password: "secret",
	}))
}

func roleToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "u-1",
		"email":        "user@example.com",
		"given_name":   "Ada",
		"family_name":  "Lovelace",
		"exp":          time.Now().Add(ttl).Unix(),
		"realm_access": map[string]any{"roles": []string{role}},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func form(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func credentials() url.Values {
	return url.Values{"email": {"new@example.com"}, "password": {"secret"}}
}

func TestLogin_RedirectsToRoleDashboard(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.token = roleToken(t, "BUSINESS", time.Hour)

	resp, err := h.app.Test(form(http.MethodPost, "/login", credentials()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/business/dashboard", resp.Header.Get("Location"))
	assert.True(t, h.session.IsAuthenticated())
	assert.Equal(t, crowdfund.RoleBusiness, h.session.Role())
}

func TestLogin_ReturnsToRememberedPath(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.token = roleToken(t, "INVESTOR", time.Hour)

	req := form(http.MethodPost, "/login", credentials())
	req.AddCookie(&http.Cookie{Name: "rejected_route", Value: "/investor/wallet"})

	resp, err := h.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/investor/wallet", resp.Header.Get("Location"))
}

func TestLogin_InactiveAccountGoesToOTP(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.err = goerrors.New("Compte non activé", goerrors.CategoryAuth)

	resp, err := h.app.Test(form(http.MethodPost, "/login", credentials()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/verify-otp?email=new%40example.com", resp.Header.Get("Location"))
	assert.False(t, h.session.IsAuthenticated())
	assert.Empty(t, h.session.Snapshot().Error)
}

func TestLogin_InvalidCredentialsRenderedInline(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.err = crowdfund.ErrInvalidCredentials

	resp, err := h.app.Test(form(http.MethodPost, "/login", credentials()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "invalid credentials", body["error"])
	assert.Equal(t, crowdfund.TextCodeInvalidCredentials, body["text_code"])

	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, "invalid credentials", h.session.Snapshot().Error)
}

func TestLogin_RejectsIncompleteForm(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.app.Test(form(http.MethodPost, "/login", url.Values{"email": {"new@example.com"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginShow_AuthenticatedGoesToDashboard(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, roleToken(t, "ADMIN", time.Hour))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/dashboard", resp.Header.Get("Location"))
}

func TestLogout_ClearsSessionAndStores(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"id":1,"title":"Solar"}],"totalElements":1,"totalPages":1,"pageNumber":0,"first":true,"last":true}`)
	})
	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/investor/campaigns", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, h.stores.Campaigns.Snapshot().Items, 1)

	resp, err = h.app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.False(t, h.session.IsAuthenticated())
	assert.Empty(t, h.session.Token())
	assert.Empty(t, h.stores.Campaigns.Snapshot().Items)
	assert.Equal(t, 1, h.auth.logouts)

	resp, err = h.app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, h.auth.logouts)
}

func TestProtected_UnauthenticatedRedirectsToLogin(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Empty(t, h.calls())
}

func TestProtected_WrongRoleQueuesNotice(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.True(t, h.session.IsAuthenticated())

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, "/api/notices", nil))
	require.NoError(t, err)

	var notices []crowdfund.Notice
	decode(t, resp, &notices)
	require.Len(t, notices, 1)
	assert.Equal(t, "error", notices[0].Level)
	assert.Empty(t, h.calls())
}

func TestProtected_ExpiredSessionIsLoggedOut(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, roleToken(t, "INVESTOR", -time.Minute))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/investor/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, h.session.IsAuthenticated())

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.NoError(t, err)
	var view struct {
		Authenticated bool   `json:"authenticated"`
		Error         string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.False(t, view.Authenticated)
	assert.Equal(t, "session expired", view.Error)
}

func TestInvestorCampaigns_ForwardsPaging(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"id":1},{"id":2},{"id":3},{"id":4},{"id":5}],"totalElements":12,"totalPages":3,"pageNumber":1,"first":false,"last":false}`)
	})
	token := roleToken(t, "INVESTOR", time.Hour)
	h.login(t, token)

	req := httptest.NewRequest(http.MethodGet, "/investor/campaigns?page=1&size=5&sort=title,asc&sort=createdAt,desc&status=ACTIVE", nil)
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state struct {
		Items      []platform.Campaign `json:"items"`
		Pagination struct {
			PageNumber int  `json:"pageNumber"`
			Last       bool `json:"last"`
		} `json:"pagination"`
	}
	decode(t, resp, &state)
	assert.Len(t, state.Items, 5)
	assert.Equal(t, 1, state.Pagination.PageNumber)
	assert.False(t, state.Pagination.Last)

	calls := h.calls()
	require.Len(t, calls, 1)
	q := calls[0].URL.Query()
	assert.Equal(t, platform.PathCampaigns, calls[0].URL.Path)
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "5", q.Get("size"))
	assert.Equal(t, []string{"title,ASC", "createdAt,DESC"}, q["sort"])
	assert.Equal(t, "ACTIVE", q.Get("status"))
	assert.Equal(t, "Bearer "+token, calls[0].Header.Get("Authorization"))
}

func TestInvestorCampaigns_RejectsBadPaging(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/investor/campaigns?size=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, h.calls())
}

func TestInvest_ValidationErrorSkipsAPI(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err := h.app.Test(form(http.MethodPost, "/investor/investments", url.Values{"amount": {"0"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, h.calls())
	assert.NotEmpty(t, h.stores.Investments.Snapshot().Error)
}

func TestInvest_SplicesCreatedEntity(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, platform.PathInvestments, r.URL.Path)
		fmt.Fprint(w, `{"id":"inv-1","campaignId":"c-1","amount":50}`)
	})
	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err := h.app.Test(form(http.MethodPost, "/investor/investments", url.Values{
		"campaign_id": {"c-1"},
		"amount":      {"50"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	items := h.stores.Investments.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "inv-1", items[0].GetID())
}

func TestAdminAction_UpstreamErrorIsNormalized(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"detail":"Campaign already approved"}`)
	})
	h.login(t, roleToken(t, "ADMIN", time.Hour))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodPost, "/admin/campaigns/7/approve", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "Campaign already approved", body["error"])

	calls := h.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, platform.PathAdminCampaigns+"/7/approve", calls[0].URL.Path)
}

func TestVerifyOTP_ReturnsToLogin(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.app.Test(form(http.MethodPost, "/verify-otp", url.Values{
		"email": {"new@example.com"},
		"code":  {"123456"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?verified=true&email=new%40example.com", resp.Header.Get("Location"))
	require.Len(t, h.otp.verified, 1)
	assert.Equal(t, "123456", h.otp.verified[0].Code)

	resp, err = h.app.Test(form(http.MethodPost, "/resend-otp", url.Values{"email": {"new@example.com"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"new@example.com"}, h.otp.resent)
}

func TestSessionState(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.NoError(t, err)
	var anon map[string]any
	decode(t, resp, &anon)
	assert.Equal(t, false, anon["authenticated"])
	assert.Equal(t, "/login", anon["dashboard"])
	assert.Nil(t, anon["identity"])

	h.login(t, roleToken(t, "INVESTOR", time.Hour))

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.NoError(t, err)
	var state struct {
		Authenticated bool               `json:"authenticated"`
		Role          string             `json:"role"`
		Dashboard     string             `json:"dashboard"`
		Identity      crowdfund.Identity `json:"identity"`
	}
	decode(t, resp, &state)
	assert.True(t, state.Authenticated)
	assert.Equal(t, "investor", state.Role)
	assert.Equal(t, "/investor/dashboard", state.Dashboard)
	assert.Equal(t, "user@example.com", state.Identity.Email)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil, web.WithMetrics(true))

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
