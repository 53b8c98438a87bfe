package web

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/apiclient"
	"github.com/goliatone/go-crowdfund/middleware/guard"
	goerrors "github.com/goliatone/go-errors"
)

type sessionView struct {
	Authenticated bool                `json:"authenticated"`
	Expired       bool                `json:"expired"`
	Role          crowdfund.Role      `json:"role"`
	Identity      *crowdfund.Identity `json:"identity,omitempty"`
	Dashboard     string              `json:"dashboard"`
	Error         string              `json:"error,omitempty"`
}

func (s *Server) currentSession() sessionView {
	sess := s.deps.Session
	snap := sess.Snapshot()
	role := sess.Role()
	view := sessionView{
		Authenticated: snap.Authenticated,
		Expired:       snap.HasCredential() && sess.Expired(),
		Role:          role,
		Dashboard:     s.routes.DashboardFor(role),
		Error:         snap.Error,
	}
	if snap.HasCredential() {
		id := sess.Identity()
		view.Identity = &id
	}
	return view
}

func badForm(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "The submitted form could not be read").
		WithCode(goerrors.CodeBadRequest)
}

func (s *Server) loginShow(c *fiber.Ctx) error {
	view := s.currentSession()
	if view.Authenticated && !view.Expired && view.Role != crowdfund.RoleNone {
		return c.Redirect(view.Dashboard, http.StatusFound)
	}
	return c.JSON(fiber.Map{
		"session":  view,
		"email":    c.Query("email"),
		"verified": c.QueryBool("verified"),
	})
}

// loginPost authenticates the user. A not yet activated account is sent to
// the OTP page, any other failure is rendered inline.
func (s *Server) loginPost(c *fiber.Ctx) error {
	var req crowdfund.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, badForm(err))
	}

	if err := s.deps.Session.Login(c.UserContext(), req); err != nil {
		if crowdfund.IsAccountNotActivated(err) {
			s.deps.Session.ClearError()
			target := s.verifyOTPPath() + "?email=" + url.QueryEscape(req.Email)
			if wantsJSON(c) {
				return c.Status(http.StatusForbidden).JSON(fiber.Map{
					"error":     crowdfund.MessageOf(err),
					"text_code": crowdfund.TextCodeAccountNotActivated,
					"redirect":  target,
				})
			}
			return c.Redirect(target, http.StatusSeeOther)
		}
		return s.fail(c, err)
	}

	role := s.deps.Session.Role()
	target := guard.PopRedirect(c, s.redirectCookie(), s.routes.DashboardFor(role))
	s.logger.Info("user logged in", "role", role, "redirect", target)

	if wantsJSON(c) {
		return c.JSON(fiber.Map{"role": role, "redirect": target})
	}
	return c.Redirect(target, http.StatusSeeOther)
}

func (s *Server) logout(c *fiber.Ctx) error {
	if err := s.deps.Session.Logout(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"redirect": s.routes.LoginPath()})
	}
	return c.Redirect(s.routes.LoginPath(), http.StatusSeeOther)
}

func (s *Server) verifyOTPShow(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"email": c.Query("email")})
}

func (s *Server) verifyOTPPost(c *fiber.Ctx) error {
	if s.deps.OTP == nil {
		return fiber.ErrNotImplemented
	}

	var req apiclient.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, badForm(err))
	}

	if err := s.deps.OTP.VerifyOTP(c.UserContext(), req); err != nil {
		return s.fail(c, err)
	}

	target := s.routes.LoginPath() + "?verified=true&email=" + url.QueryEscape(req.Email)
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"redirect": target})
	}
	return c.Redirect(target, http.StatusSeeOther)
}

func (s *Server) resendOTP(c *fiber.Ctx) error {
	if s.deps.OTP == nil {
		return fiber.ErrNotImplemented
	}

	var req apiclient.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, badForm(err))
	}
	if err := s.deps.OTP.ResendOTP(c.UserContext(), req.Email); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) sessionState(c *fiber.Ctx) error {
	return c.JSON(s.currentSession())
}

func (s *Server) clearSessionError(c *fiber.Ctx) error {
	s.deps.Session.ClearError()
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) drainNotices(c *fiber.Ctx) error {
	return c.JSON(s.deps.Notices.Drain())
}
