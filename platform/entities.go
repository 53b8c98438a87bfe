package platform

import (
	"bytes"
	"encoding/json"
	"time"
)

// ID accepts both numeric and string identifiers from the API.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignPending   CampaignStatus = "PENDING"
	CampaignOpen      CampaignStatus = "OPEN"
	CampaignFunded    CampaignStatus = "FUNDED"
	CampaignClosed    CampaignStatus = "CLOSED"
	CampaignRejected  CampaignStatus = "REJECTED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

// Campaign is a fundraising project published by a business.
type Campaign struct {
	ID              ID             `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Status          CampaignStatus `json:"status"`
	GoalAmount      float64        `json:"goalAmount"`
	RaisedAmount    float64        `json:"raisedAmount"`
	MinInvestment   float64        `json:"minInvestment,omitempty"`
	Currency        string         `json:"currency,omitempty"`
	BusinessID      ID             `json:"businessId,omitempty"`
	BusinessName    string         `json:"businessName,omitempty"`
	EndDate         *time.Time     `json:"endDate,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
}

func (c Campaign) GetID() string { return c.ID.String() }

// Progress returns the funded ratio in [0,1].
func (c Campaign) Progress() float64 {
	if c.GoalAmount <= 0 {
		return 0
	}
	p := c.RaisedAmount / c.GoalAmount
	if p > 1 {
		return 1
	}
	return p
}

// Investment is an investor's stake in a campaign.
type Investment struct {
	ID            ID         `json:"id"`
	CampaignID    ID         `json:"campaignId"`
	CampaignTitle string     `json:"campaignTitle,omitempty"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

func (i Investment) GetID() string { return i.ID.String() }

// Wallet is the balance of the current user.
type Wallet struct {
	ID        ID         `json:"id"`
	Balance   float64    `json:"balance"`
	Currency  string     `json:"currency,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (w Wallet) GetID() string { return w.ID.String() }

// WalletTransaction is one movement on the wallet.
type WalletTransaction struct {
	ID        ID         `json:"id"`
	Type      string     `json:"type"`
	Amount    float64    `json:"amount"`
	Status    string     `json:"status"`
	Reference string     `json:"reference,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (t WalletTransaction) GetID() string { return t.ID.String() }

type KYCDocumentType string

const (
	KYCIDCard          KYCDocumentType = "ID_CARD"
	KYCPassport        KYCDocumentType = "PASSPORT"
	KYCProofOfAddress  KYCDocumentType = "PROOF_OF_ADDRESS"
	KYCCompanyRegistry KYCDocumentType = "COMPANY_REGISTRY"
)

// KYCDocument is an identity document submitted for verification.
type KYCDocument struct {
	ID              ID              `json:"id"`
	Type            KYCDocumentType `json:"type"`
	Status          string          `json:"status"`
	FileName        string          `json:"fileName,omitempty"`
	UserID          ID              `json:"userId,omitempty"`
	UserEmail       string          `json:"userEmail,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	UploadedAt      *time.Time      `json:"uploadedAt,omitempty"`
}

func (d KYCDocument) GetID() string { return d.ID.String() }

// Withdrawal moves wallet funds to a bank account.
type Withdrawal struct {
	ID              ID         `json:"id"`
	Amount          float64    `json:"amount"`
	IBAN            string     `json:"iban,omitempty"`
	Status          string     `json:"status"`
	UserEmail       string     `json:"userEmail,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

func (w Withdrawal) GetID() string { return w.ID.String() }

// AdminUser is a platform account as seen by administrators.
type AdminUser struct {
	ID        ID         `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (u AdminUser) GetID() string { return u.ID.String() }

// Checkout is the response of a deposit request.
type Checkout struct {
	URL string `json:"checkoutUrl"`
}
