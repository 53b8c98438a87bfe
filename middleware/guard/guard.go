package guard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	crowdfund "github.com/goliatone/go-crowdfund"
)

// Reactor runs the side effects of a decision after the response is prepared.
type Reactor interface {
	React(ctx context.Context, path string, d crowdfund.Decision)
}

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(*fiber.Ctx) bool
	// Session is the session read on every request. Required.
	Session crowdfund.SessionReader
	// Guard computes decisions. Defaults to crowdfund.NewGuard().
	Guard *crowdfund.Guard
	// Reactor executes forced logouts and notices. Optional.
	Reactor Reactor
	// Allowed lists the roles of the protected group. Empty allows any
	// authenticated role.
	Allowed []crowdfund.Role
	// RedirectCookie holds the attempted path for the post-login return.
	RedirectCookie string
	RedirectTTL    time.Duration
	// ContextKey is the fiber Locals key of the decision.
	ContextKey string
	// OnDecision observes every decision, e.g. for metrics.
	OnDecision func(crowdfund.Decision)
	Logger     crowdfund.Logger
}

// New returns a fiber middleware that gates a route group.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		path := c.Path()
		d := cfg.Guard.Evaluate(cfg.Session.Snapshot(), cfg.Allowed)
		if cfg.OnDecision != nil {
			cfg.OnDecision(d)
		}

		if d.Allowed() {
			ctx := crowdfund.WithDecisionContext(c.UserContext(), d)
			ctx = crowdfund.WithIdentityContext(ctx, crowdfund.IdentityOf(crowdfund.Decode(d.Token)))
			c.SetUserContext(ctx)
			c.Locals(cfg.ContextKey, d)
			if cfg.Reactor != nil {
				cfg.Reactor.React(ctx, path, d)
			}
			return c.Next()
		}

		cfg.Logger.Debug("guard rejected request", "path", path, "state", d.State.String(), "role", d.Role)

		if d.RememberPath() {
			SetRedirect(c, cfg.RedirectCookie, c.OriginalURL(), cfg.RedirectTTL)
		}

		err := respond(c, d)

		if cfg.Reactor != nil {
			cfg.Reactor.React(c.UserContext(), path, d)
		}
		return err
	}
}

// GetDefaultConfig fills the zero values of the first config.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Session == nil {
		panic("CROWDFUND: guard middleware configuration: Session is required.")
	}

	if cfg.Guard == nil {
		cfg.Guard = crowdfund.NewGuard()
	}

	if cfg.RedirectCookie == "" {
		cfg.RedirectCookie = "rejected_route"
	}

	if cfg.RedirectTTL <= 0 {
		cfg.RedirectTTL = 5 * time.Minute
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "decision"
	}

	if cfg.Logger == nil {
		cfg.Logger = crowdfund.DefaultLogger()
	}

	return cfg
}

func respond(c *fiber.Ctx, d crowdfund.Decision) error {
	if wantsJSON(c) {
		status := http.StatusUnauthorized
		if d.State == crowdfund.StateUnauthorized {
			status = http.StatusForbidden
		}
		return c.Status(status).JSON(fiber.Map{
			"state":    d.State.String(),
			"redirect": d.Redirect,
		})
	}

	statusCode := http.StatusSeeOther
	if c.Method() == fiber.MethodGet {
		statusCode = http.StatusFound
	}
	return c.Redirect(d.Redirect, statusCode)
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

// SetRedirect remembers path for the post-login return.
func SetRedirect(c *fiber.Ctx, name, path string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    path,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PopRedirect returns and clears the remembered path, def when there is none
// or when it is not a local path.
func PopRedirect(c *fiber.Ctx, name, def string) string {
	r := c.Cookies(name)
	if r == "" {
		return def
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if !strings.HasPrefix(r, "/") || strings.HasPrefix(r, "//") {
		return def
	}
	return r
}

// DecisionFrom returns the decision stored by the middleware.
func DecisionFrom(c *fiber.Ctx, key string) (crowdfund.Decision, bool) {
	if key == "" {
		key = "decision"
	}
	d, ok := c.Locals(key).(crowdfund.Decision)
	return d, ok
}
