package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/recover"
	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/apiclient"
	"github.com/goliatone/go-crowdfund/middleware/guard"
	"github.com/goliatone/go-crowdfund/platform"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OTPClient activates accounts that are not verified yet.
type OTPClient interface {
	VerifyOTP(ctx context.Context, req apiclient.VerifyOTPRequest) error
	ResendOTP(ctx context.Context, email string) error
}

// Deps are the collaborators of the shell. They are built once at start up.
type Deps struct {
	Session *crowdfund.SessionStore
	OTP     OTPClient
	Stores  *platform.Stores
	Notices *crowdfund.NoticeQueue
	Reactor *crowdfund.GuardReactor
	Config  crowdfund.Config
	Logger  crowdfund.Logger
	// OnDecision observes guard decisions.
	OnDecision func(crowdfund.Decision)
}

// Option customizes the Server.
type Option func(*Server)

// WithCSRF protects form posts with a double submit cookie.
func WithCSRF(enabled bool) Option {
	return func(s *Server) {
		s.csrf = enabled
	}
}

// WithMetrics exposes the Prometheus registry on /metrics.
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metrics = enabled
	}
}

// Server is the local web shell: one process, one user session.
type Server struct {
	app     *fiber.App
	deps    Deps
	routes  crowdfund.Routes
	guard   *crowdfund.Guard
	logger  crowdfund.Logger
	csrf    bool
	metrics bool
}

// New builds the fiber app and registers every route.
func New(deps Deps, opts ...Option) *Server {
	if deps.Logger == nil {
		deps.Logger = crowdfund.DefaultLogger()
	}
	if deps.Notices == nil {
		deps.Notices = crowdfund.NewNoticeQueue(20)
	}
	if deps.Reactor == nil {
		deps.Reactor = crowdfund.NewGuardReactor(deps.Session, deps.Notices,
			crowdfund.WithReactorLogger(deps.Logger))
	}

	routes := crowdfund.DefaultRoutes()
	if deps.Config != nil {
		routes = deps.Config.GetRoutes()
	}

	s := &Server{
		deps:    deps,
		routes:  routes,
		guard:   &crowdfund.Guard{Routes: routes, Now: time.Now},
		logger:  deps.Logger,
		metrics: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "crowdfund",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	if s.csrf {
		s.app.Use(csrf.New(csrf.Config{
			KeyLookup:      "form:_csrf",
			CookieName:     "csrf_",
			CookieSameSite: "Lax",
			Expiration:     time.Hour,
			Next: func(c *fiber.Ctx) bool {
				return wantsJSON(c)
			},
		}))
	}

	s.registerRoutes()
	return s
}

// App returns the fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("web shell listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) protect(allowed ...crowdfund.Role) fiber.Handler {
	return guard.New(guard.Config{
		Session:        s.deps.Session,
		Guard:          s.guard,
		Reactor:        s.deps.Reactor,
		Allowed:        allowed,
		RedirectCookie: s.redirectCookie(),
		OnDecision:     s.deps.OnDecision,
		Logger:         s.logger,
	})
}

func (s *Server) redirectCookie() string {
	if s.deps.Config != nil && s.deps.Config.GetRedirectCookie() != "" {
		return s.deps.Config.GetRedirectCookie()
	}
	return "rejected_route"
}

func (s *Server) registerRoutes() {
	app := s.app

	app.Get(s.routes.LoginPath(), s.loginShow)
	app.Post(s.routes.LoginPath(), s.loginPost)
	app.Post("/logout", s.logout)
	app.Get(s.verifyOTPPath(), s.verifyOTPShow)
	app.Post(s.verifyOTPPath(), s.verifyOTPPost)
	app.Post("/resend-otp", s.resendOTP)

	app.Get("/api/session", s.sessionState)
	app.Delete("/api/session/error", s.clearSessionError)
	app.Get("/api/notices", s.drainNotices)

	if s.metrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	st := s.deps.Stores

	investor := app.Group("/investor", s.protect(crowdfund.RoleInvestor))
	investor.Get("/dashboard", s.dashboard(crowdfund.RoleInvestor))
	investor.Get("/campaigns", listHandler(s, st.Campaigns))
	investor.Get("/campaigns/:id", itemHandler(s, st.Campaigns))
	investor.Get("/investments", listHandler(s, st.Investments))
	investor.Post("/investments", s.invest)
	s.walletRoutes(investor)
	s.kycRoutes(investor)

	business := app.Group("/business", s.protect(crowdfund.RoleBusiness))
	business.Get("/dashboard", s.dashboard(crowdfund.RoleBusiness))
	business.Get("/campaigns", listHandler(s, st.MyCampaigns))
	business.Get("/campaigns/:id", itemHandler(s, st.MyCampaigns))
	business.Post("/campaigns", s.createCampaign)
	business.Put("/campaigns/:id", s.updateCampaign)
	business.Post("/campaigns/:id/submit", s.submitCampaign)
	business.Get("/withdrawals", listHandler(s, st.Withdrawals))
	business.Post("/withdrawals", s.requestWithdrawal)
	s.walletRoutes(business)
	s.kycRoutes(business)

	admin := app.Group("/admin", s.protect(crowdfund.RoleAdmin))
	admin.Get("/dashboard", s.dashboard(crowdfund.RoleAdmin))
	admin.Get("/users", listHandler(s, st.AdminUsers))
	admin.Post("/users", s.createUser)
	admin.Post("/users/:id/activate", s.setUserActive(true))
	admin.Post("/users/:id/deactivate", s.setUserActive(false))
	admin.Get("/campaigns", listHandler(s, st.AdminCampaigns))
	admin.Post("/campaigns/:id/approve", s.approveCampaign)
	admin.Post("/campaigns/:id/reject", s.rejectCampaign)
	admin.Get("/kyc", listHandler(s, st.AdminKYC))
	admin.Post("/kyc/:id/verify", s.verifyKYC)
	admin.Post("/kyc/:id/reject", s.rejectKYC)
	admin.Get("/withdrawals", listHandler(s, st.AdminWithdrawals))
	admin.Post("/withdrawals/:id/approve", s.approveWithdrawal)
	admin.Post("/withdrawals/:id/reject", s.rejectWithdrawal)
}

func (s *Server) walletRoutes(r fiber.Router) {
	r.Get("/wallet", s.wallet)
	r.Get("/wallet/transactions", listHandler(s, s.deps.Stores.WalletTransactions))
	r.Post("/wallet/deposit", s.deposit)
}

func (s *Server) kycRoutes(r fiber.Router) {
	r.Get("/kyc", listHandler(s, s.deps.Stores.KYCDocuments))
	r.Post("/kyc", s.uploadKYC)
}

func (s *Server) verifyOTPPath() string {
	if s.routes.VerifyOTP == "" {
		return crowdfund.DefaultRoutes().VerifyOTP
	}
	return s.routes.VerifyOTP
}

func (s *Server) pageSize() int {
	if s.deps.Config != nil {
		return s.deps.Config.GetDefaultPageSize()
	}
	return s.deps.Stores.PageSize()
}
