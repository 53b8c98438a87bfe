package crowdfund

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

var _ Config = (*Options)(nil)

// Options is the environment backed configuration of the client.
type Options struct {
	APIBaseURL     string        `env:"CROWDFUND_API_URL,         default=http://localhost:8080/api"`
	Listen         string        `env:"CROWDFUND_LISTEN,          default=127.0.0.1:3000"`
	SessionDSN     string        `env:"CROWDFUND_SESSION_DSN,     default=file:crowdfund-session.db?cache=shared"`
	RequestTimeout time.Duration `env:"CROWDFUND_REQUEST_TIMEOUT, default=15s"`
	RateLimit      float64       `env:"CROWDFUND_RATE_LIMIT,      default=10"`
	RateBurst      int           `env:"CROWDFUND_RATE_BURST,      default=20"`
	PageSize       int           `env:"CROWDFUND_PAGE_SIZE,       default=20"`
	PhoneRegion    string        `env:"CROWDFUND_PHONE_REGION,    default=FR"`
	RedirectCookie string        `env:"CROWDFUND_REDIRECT_COOKIE, default=rejected_route"`
	Idempotency    bool          `env:"CROWDFUND_IDEMPOTENCY,     default=true"`
	CSRF           bool          `env:"CROWDFUND_CSRF,            default=true"`
	Metrics        bool          `env:"CROWDFUND_METRICS,         default=true"`
	LogLevel       string        `env:"CROWDFUND_LOG_LEVEL,       default=info"`
	LogPretty      bool          `env:"CROWDFUND_LOG_PRETTY,      default=false"`
	Debug          bool          `env:"CROWDFUND_DEBUG,           default=false"`

	LoginRoute             string `env:"CROWDFUND_ROUTE_LOGIN,              default=/login"`
	VerifyOTPRoute         string `env:"CROWDFUND_ROUTE_VERIFY_OTP,         default=/verify-otp"`
	InvestorDashboardRoute string `env:"CROWDFUND_ROUTE_INVESTOR_DASHBOARD, default=/investor/dashboard"`
	BusinessDashboardRoute string `env:"CROWDFUND_ROUTE_BUSINESS_DASHBOARD, default=/business/dashboard"`
	AdminDashboardRoute    string `env:"CROWDFUND_ROUTE_ADMIN_DASHBOARD,    default=/admin/dashboard"`
}

// LoadOptions reads configuration from environment variables.
func LoadOptions(ctx context.Context) (*Options, error) {
	var opts Options
	if err := envconfig.Process(ctx, &opts); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &opts, nil
}

// LoadOptionsFrom reads configuration from a lookuper, used in tests.
func LoadOptionsFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Options, error) {
	var opts Options
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &opts,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &opts, nil
}

func (o *Options) GetAPIBaseURL() string {
	return o.APIBaseURL
}

func (o *Options) GetRequestTimeout() time.Duration {
	return o.RequestTimeout
}

func (o *Options) GetRateLimit() float64 {
	return o.RateLimit
}

func (o *Options) GetRateBurst() int {
	return o.RateBurst
}

func (o *Options) GetDefaultPageSize() int {
	if o.PageSize <= 0 {
		return 20
	}
	return o.PageSize
}

func (o *Options) GetRedirectCookie() string {
	return o.RedirectCookie
}

func (o *Options) GetDebug() bool {
	return o.Debug
}

func (o *Options) GetRoutes() Routes {
	return Routes{
		Login:             o.LoginRoute,
		VerifyOTP:         o.VerifyOTPRoute,
		InvestorDashboard: o.InvestorDashboardRoute,
		BusinessDashboard: o.BusinessDashboardRoute,
		AdminDashboard:    o.AdminDashboardRoute,
	}
}
