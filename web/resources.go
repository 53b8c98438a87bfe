package web

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/platform"
	"github.com/goliatone/go-crowdfund/resource"
	goerrors "github.com/goliatone/go-errors"
)

// filterParams are forwarded to the API as list filters.
var filterParams = []string{"status", "type", "q"}

func (s *Server) pageRequest(c *fiber.Ctx) (resource.PageRequest, error) {
	var sort []string
	for _, v := range c.Context().QueryArgs().PeekMulti("sort") {
		sort = append(sort, string(v))
	}

	req, err := resource.ParsePageRequest(c.Query("page"), c.Query("size"), sort, s.pageSize())
	if err != nil {
		return req, goerrors.Wrap(err, goerrors.CategoryBadInput, err.Error()).
			WithCode(goerrors.CodeBadRequest)
	}

	for _, key := range filterParams {
		if v := c.Query(key); v != "" {
			req = req.WithParam(key, v)
		}
	}
	return req, nil
}

// listHandler fetches a page into store and renders the store state. Fetch
// failures are part of the state, not of the response status.
func listHandler[T resource.Entity](s *Server, store *resource.Store[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := s.pageRequest(c)
		if err != nil {
			return s.fail(c, err)
		}
		if err := store.FetchList(c.UserContext(), req); err != nil {
			s.logger.Debug("list fetch failed", "store", store.Name(), "error", err)
		}
		return c.JSON(store.Snapshot())
	}
}

func itemHandler[T resource.Entity](s *Server, store *resource.Store[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		item, err := store.FetchByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(item)
	}
}

// respondMutation splices the returned entity into store.
func respondMutation[T resource.Entity](s *Server, c *fiber.Ctx, store *resource.Store[T], item T, err error, status int) error {
	if err != nil {
		return s.fail(c, err)
	}
	store.Upsert(item)
	return c.Status(status).JSON(item)
}

func (s *Server) dashboard(role crowdfund.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := s.deps.Stores
		if err := st.LoadDashboard(c.UserContext(), role); err != nil {
			s.logger.Warn("dashboard partially loaded", "role", role, "error", err)
		}

		view := fiber.Map{"session": s.currentSession()}
		switch role {
		case crowdfund.RoleInvestor:
			view["campaigns"] = st.Campaigns.Snapshot()
			view["investments"] = st.Investments.Snapshot()
			view["transactions"] = st.WalletTransactions.Snapshot()
			view["kyc"] = st.KYCDocuments.Snapshot()
			view["wallet"] = st.Wallet.Snapshot()
		case crowdfund.RoleBusiness:
			view["campaigns"] = st.MyCampaigns.Snapshot()
			view["withdrawals"] = st.Withdrawals.Snapshot()
			view["kyc"] = st.KYCDocuments.Snapshot()
			view["wallet"] = st.Wallet.Snapshot()
		case crowdfund.RoleAdmin:
			view["users"] = st.AdminUsers.Snapshot()
			view["campaigns"] = st.AdminCampaigns.Snapshot()
			view["kyc"] = st.AdminKYC.Snapshot()
			view["withdrawals"] = st.AdminWithdrawals.Snapshot()
		}
		return c.JSON(view)
	}
}

func (s *Server) invest(c *fiber.Ctx) error {
	var in platform.InvestmentInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	item, err := s.deps.Stores.Invest(c.UserContext(), in)
	return respondMutation(s, c, s.deps.Stores.Investments, item, err, http.StatusCreated)
}

func (s *Server) wallet(c *fiber.Ctx) error {
	w := s.deps.Stores.Wallet
	if err := w.Load(c.UserContext()); err != nil {
		s.logger.Debug("wallet load failed", "error", err)
	}
	return c.JSON(w.Snapshot())
}

// deposit sends the browser to the external payment checkout.
func (s *Server) deposit(c *fiber.Ctx) error {
	var in platform.DepositInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	checkout, err := s.deps.Stores.Deposit(c.UserContext(), in)
	if err != nil {
		return s.fail(c, err)
	}
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"checkout_url": checkout})
	}
	return c.Redirect(checkout, http.StatusSeeOther)
}

func (s *Server) uploadKYC(c *fiber.Ctx) error {
	var in platform.KYCUploadInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}

	header, err := c.FormFile("file")
	if err != nil {
		return s.fail(c, goerrors.Wrap(err, goerrors.CategoryValidation, "A document file is required").
			WithCode(goerrors.CodeBadRequest))
	}
	file, err := header.Open()
	if err != nil {
		return s.fail(c, badForm(err))
	}
	defer file.Close()

	st := s.deps.Stores
	doc, err := st.UploadKYC(c.UserContext(), in, header.Filename, file)
	return respondMutation(s, c, st.KYCDocuments, doc, err, http.StatusCreated)
}

func (s *Server) requestWithdrawal(c *fiber.Ctx) error {
	var in platform.WithdrawalInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.RequestWithdrawal(c.UserContext(), in)
	return respondMutation(s, c, st.Withdrawals, item, err, http.StatusCreated)
}

func (s *Server) createCampaign(c *fiber.Ctx) error {
	var in platform.CampaignInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.CreateCampaign(c.UserContext(), in)
	return respondMutation(s, c, st.MyCampaigns, item, err, http.StatusCreated)
}

func (s *Server) updateCampaign(c *fiber.Ctx) error {
	var in platform.CampaignInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.UpdateCampaign(c.UserContext(), c.Params("id"), in)
	return respondMutation(s, c, st.MyCampaigns, item, err, http.StatusOK)
}

func (s *Server) submitCampaign(c *fiber.Ctx) error {
	st := s.deps.Stores
	item, err := st.SubmitCampaign(c.UserContext(), c.Params("id"))
	return respondMutation(s, c, st.MyCampaigns, item, err, http.StatusOK)
}

func (s *Server) createUser(c *fiber.Ctx) error {
	var in platform.AdminUserInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.CreateUser(c.UserContext(), in)
	return respondMutation(s, c, st.AdminUsers, item, err, http.StatusCreated)
}

func (s *Server) setUserActive(active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := s.deps.Stores
		item, err := st.SetUserActive(c.UserContext(), c.Params("id"), active)
		return respondMutation(s, c, st.AdminUsers, item, err, http.StatusOK)
	}
}

func (s *Server) approveCampaign(c *fiber.Ctx) error {
	st := s.deps.Stores
	item, err := st.ApproveCampaign(c.UserContext(), c.Params("id"))
	return respondMutation(s, c, st.AdminCampaigns, item, err, http.StatusOK)
}

func (s *Server) rejectCampaign(c *fiber.Ctx) error {
	var in platform.RejectInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.RejectCampaign(c.UserContext(), c.Params("id"), in)
	return respondMutation(s, c, st.AdminCampaigns, item, err, http.StatusOK)
}

func (s *Server) verifyKYC(c *fiber.Ctx) error {
	st := s.deps.Stores
	item, err := st.VerifyKYC(c.UserContext(), c.Params("id"))
	return respondMutation(s, c, st.AdminKYC, item, err, http.StatusOK)
}

func (s *Server) rejectKYC(c *fiber.Ctx) error {
	var in platform.RejectInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.RejectKYC(c.UserContext(), c.Params("id"), in)
	return respondMutation(s, c, st.AdminKYC, item, err, http.StatusOK)
}

func (s *Server) approveWithdrawal(c *fiber.Ctx) error {
	st := s.deps.Stores
	item, err := st.ApproveWithdrawal(c.UserContext(), c.Params("id"))
	return respondMutation(s, c, st.AdminWithdrawals, item, err, http.StatusOK)
}

func (s *Server) rejectWithdrawal(c *fiber.Ctx) error {
	var in platform.RejectInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badForm(err))
	}
	st := s.deps.Stores
	item, err := st.RejectWithdrawal(c.UserContext(), c.Params("id"), in)
	return respondMutation(s, c, st.AdminWithdrawals, item, err, http.StatusOK)
}
