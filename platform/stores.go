package platform

import (
	"context"
	"io"
	"net/http"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/goliatone/go-crowdfund/apiclient"
	"github.com/goliatone/go-crowdfund/resource"
	"golang.org/x/sync/errgroup"
)

// API collection paths.
const (
	PathCampaigns          = "/campaigns"
	PathMyCampaigns        = "/business/campaigns"
	PathInvestments        = "/investments"
	PathWallet             = "/wallet"
	PathWalletTransactions = "/wallet/transactions"
	PathWalletDeposit      = "/wallet/deposit"
	PathKYCDocuments       = "/kyc/documents"
	PathWithdrawals        = "/withdrawals"
	PathAdminUsers         = "/admin/users"
	PathAdminCampaigns     = "/admin/campaigns"
	PathAdminKYC           = "/admin/kyc/documents"
	PathAdminWithdrawals   = "/admin/withdrawals"
)

// Option customizes Stores.
type Option func(*Stores)

// WithStoreOptions forwards options to every resource store.
func WithStoreOptions(opts ...resource.Option) Option {
	return func(s *Stores) {
		s.storeOpts = append(s.storeOpts, opts...)
	}
}

// WithPhoneRegion sets the default region used to parse phone numbers.
func WithPhoneRegion(region string) Option {
	return func(s *Stores) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

// WithPageSize sets the page size of dashboard fetches.
func WithPageSize(size int) Option {
	return func(s *Stores) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger crowdfund.Logger) Option {
	return func(s *Stores) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stores holds one resource store per platform collection. It is built once
// at start up and injected into handlers.
type Stores struct {
	api         *apiclient.Client
	storeOpts   []resource.Option
	phoneRegion string
	pageSize    int
	logger      crowdfund.Logger

	Campaigns          *resource.Store[Campaign]
	MyCampaigns        *resource.Store[Campaign]
	Investments        *resource.Store[Investment]
	WalletTransactions *resource.Store[WalletTransaction]
	KYCDocuments       *resource.Store[KYCDocument]
	Withdrawals        *resource.Store[Withdrawal]
	AdminUsers         *resource.Store[AdminUser]
	AdminCampaigns     *resource.Store[Campaign]
	AdminKYC           *resource.Store[KYCDocument]
	AdminWithdrawals   *resource.Store[Withdrawal]
	Wallet             *resource.Single[Wallet]
}

// NewStores builds every store on top of api.
func NewStores(api *apiclient.Client, opts ...Option) *Stores {
	s := &Stores{
		api:         api,
		phoneRegion: "FR",
		pageSize:    20,
		logger:      crowdfund.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	storeOpts := append([]resource.Option{resource.WithLogger(s.logger)}, s.storeOpts...)

	s.Campaigns = resource.New[Campaign]("campaigns", apiclient.NewResource[Campaign](api, PathCampaigns), storeOpts...)
	s.MyCampaigns = resource.New[Campaign]("my_campaigns", apiclient.NewResource[Campaign](api, PathMyCampaigns), storeOpts...)
	s.Investments = resource.New[Investment]("investments", apiclient.NewResource[Investment](api, PathInvestments), storeOpts...)
	s.WalletTransactions = resource.New[WalletTransaction]("wallet_transactions", apiclient.NewResource[WalletTransaction](api, PathWalletTransactions), storeOpts...)
	s.KYCDocuments = resource.New[KYCDocument]("kyc_documents", apiclient.NewResource[KYCDocument](api, PathKYCDocuments), storeOpts...)
	s.Withdrawals = resource.New[Withdrawal]("withdrawals", apiclient.NewResource[Withdrawal](api, PathWithdrawals), storeOpts...)
	s.AdminUsers = resource.New[AdminUser]("admin_users", apiclient.NewResource[AdminUser](api, PathAdminUsers), storeOpts...)
	s.AdminCampaigns = resource.New[Campaign]("admin_campaigns", apiclient.NewResource[Campaign](api, PathAdminCampaigns), storeOpts...)
	s.AdminKYC = resource.New[KYCDocument]("admin_kyc", apiclient.NewResource[KYCDocument](api, PathAdminKYC), storeOpts...)
	s.AdminWithdrawals = resource.New[Withdrawal]("admin_withdrawals", apiclient.NewResource[Withdrawal](api, PathAdminWithdrawals), storeOpts...)
	s.Wallet = resource.NewSingle[Wallet]("wallet", func(ctx context.Context) (Wallet, error) {
		var w Wallet
		err := api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: PathWallet}, &w)
		return w, err
	}, storeOpts...)

	return s
}

// PageSize returns the default page size.
func (s *Stores) PageSize() int {
	return s.pageSize
}

// FirstPage is the default list request.
func (s *Stores) FirstPage() resource.PageRequest {
	return resource.PageRequest{Page: 0, Size: s.pageSize}
}

// Invest creates an investment in a campaign.
func (s *Stores) Invest(ctx context.Context, in InvestmentInput) (Investment, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.Investments.RecordError(err)
		return Investment{}, err
	}
	return s.Investments.Create(ctx, in)
}

// RequestWithdrawal asks for a payout of wallet funds.
func (s *Stores) RequestWithdrawal(ctx context.Context, in WithdrawalInput) (Withdrawal, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.Withdrawals.RecordError(err)
		return Withdrawal{}, err
	}
	return s.Withdrawals.Create(ctx, in)
}

// UploadKYC submits a document and returns the created record.
func (s *Stores) UploadKYC(ctx context.Context, in KYCUploadInput, filename string, file io.Reader) (KYCDocument, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.KYCDocuments.RecordError(err)
		return KYCDocument{}, err
	}

	phone, err := NormalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		err = invalid(err)
		s.KYCDocuments.RecordError(err)
		return KYCDocument{}, err
	}

	fields := map[string]string{"type": string(in.Type)}
	if phone != "" {
		fields["phone"] = phone
	}

	return s.KYCDocuments.Mutate(ctx, "upload", func(ctx context.Context) (KYCDocument, error) {
		var doc KYCDocument
		err := s.api.Upload(ctx, PathKYCDocuments, "file", filename, file, fields, &doc)
		return doc, err
	})
}

// CreateCampaign creates a draft campaign for the current business.
func (s *Stores) CreateCampaign(ctx context.Context, in CampaignInput) (Campaign, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.MyCampaigns.RecordError(err)
		return Campaign{}, err
	}
	return s.MyCampaigns.Create(ctx, in)
}

// UpdateCampaign edits a draft campaign.
func (s *Stores) UpdateCampaign(ctx context.Context, id string, in CampaignInput) (Campaign, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.MyCampaigns.RecordError(err)
		return Campaign{}, err
	}
	return s.MyCampaigns.Update(ctx, id, in)
}

// SubmitCampaign sends a draft for review.
func (s *Stores) SubmitCampaign(ctx context.Context, id string) (Campaign, error) {
	return s.MyCampaigns.Action(ctx, id, "submit", nil)
}

// ApproveCampaign publishes a pending campaign.
func (s *Stores) ApproveCampaign(ctx context.Context, id string) (Campaign, error) {
	return s.AdminCampaigns.Action(ctx, id, "approve", nil)
}

// RejectCampaign sends a pending campaign back with a reason.
func (s *Stores) RejectCampaign(ctx context.Context, id string, in RejectInput) (Campaign, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.AdminCampaigns.RecordError(err)
		return Campaign{}, err
	}
	return s.AdminCampaigns.Action(ctx, id, "reject", in)
}

// ApproveWithdrawal releases a payout.
func (s *Stores) ApproveWithdrawal(ctx context.Context, id string) (Withdrawal, error) {
	return s.AdminWithdrawals.Action(ctx, id, "approve", nil)
}

// RejectWithdrawal refuses a payout.
func (s *Stores) RejectWithdrawal(ctx context.Context, id string, in RejectInput) (Withdrawal, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.AdminWithdrawals.RecordError(err)
		return Withdrawal{}, err
	}
	return s.AdminWithdrawals.Action(ctx, id, "reject", in)
}

// VerifyKYC marks a document as verified.
func (s *Stores) VerifyKYC(ctx context.Context, id string) (KYCDocument, error) {
	return s.AdminKYC.Action(ctx, id, "verify", nil)
}

// RejectKYC refuses a document.
func (s *Stores) RejectKYC(ctx context.Context, id string, in RejectInput) (KYCDocument, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.AdminKYC.RecordError(err)
		return KYCDocument{}, err
	}
	return s.AdminKYC.Action(ctx, id, "reject", in)
}

// CreateUser creates a platform account with a normalized phone number.
func (s *Stores) CreateUser(ctx context.Context, in AdminUserInput) (AdminUser, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.AdminUsers.RecordError(err)
		return AdminUser{}, err
	}

	phone, err := NormalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		err = invalid(err)
		s.AdminUsers.RecordError(err)
		return AdminUser{}, err
	}
	in.Phone = phone

	role, _ := crowdfund.ParseRole(in.Role)
	in.Role = string(role)

	return s.AdminUsers.Create(ctx, in)
}

// SetUserActive enables or disables an account.
func (s *Stores) SetUserActive(ctx context.Context, id string, active bool) (AdminUser, error) {
	action := "deactivate"
	if active {
		action = "activate"
	}
	return s.AdminUsers.Action(ctx, id, action, nil)
}

// Deposit starts a wallet top up and returns the external checkout URL.
func (s *Stores) Deposit(ctx context.Context, in DepositInput) (string, error) {
	if err := in.Validate(); err != nil {
		err = invalid(err)
		s.Wallet.RecordError(err)
		return "", err
	}

	var out Checkout
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   PathWalletDeposit,
		Body:   in,
	}, &out)
	if err != nil {
		s.Wallet.RecordError(err)
		return "", err
	}
	return out.URL, nil
}

// LoadDashboard fetches the initial collections of role concurrently. Every
// store records its own failure; the first error is returned.
func (s *Stores) LoadDashboard(ctx context.Context, role crowdfund.Role) error {
	req := s.FirstPage()

	var g errgroup.Group
	switch role {
	case crowdfund.RoleInvestor:
		g.Go(func() error { return s.Campaigns.FetchList(ctx, req) })
		g.Go(func() error { return s.Investments.FetchList(ctx, req) })
		g.Go(func() error { return s.WalletTransactions.FetchList(ctx, req) })
		g.Go(func() error { return s.KYCDocuments.FetchList(ctx, req) })
		g.Go(func() error { return s.Wallet.Load(ctx) })
	case crowdfund.RoleBusiness:
		g.Go(func() error { return s.MyCampaigns.FetchList(ctx, req) })
		g.Go(func() error { return s.Withdrawals.FetchList(ctx, req) })
		g.Go(func() error { return s.KYCDocuments.FetchList(ctx, req) })
		g.Go(func() error { return s.Wallet.Load(ctx) })
	case crowdfund.RoleAdmin:
		g.Go(func() error { return s.AdminUsers.FetchList(ctx, req) })
		g.Go(func() error { return s.AdminCampaigns.FetchList(ctx, req) })
		g.Go(func() error { return s.AdminKYC.FetchList(ctx, req) })
		g.Go(func() error { return s.AdminWithdrawals.FetchList(ctx, req) })
	default:
		return crowdfund.ErrNotAuthenticated
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard load incomplete", "role", role, "error", err)
		return err
	}
	return nil
}

// Reset wipes every store. Wire it as a session logout hook.
func (s *Stores) Reset(_ context.Context) {
	s.Campaigns.Reset()
	s.MyCampaigns.Reset()
	s.Investments.Reset()
	s.WalletTransactions.Reset()
	s.KYCDocuments.Reset()
	s.Withdrawals.Reset()
	s.AdminUsers.Reset()
	s.AdminCampaigns.Reset()
	s.AdminKYC.Reset()
	s.AdminWithdrawals.Reset()
	s.Wallet.Reset()
}
