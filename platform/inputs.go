package platform

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	crowdfund "github.com/goliatone/go-crowdfund"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const dateLayout = "2006-01-02"

// ErrInvalidPhone is returned when a phone number cannot be normalized.
var ErrInvalidPhone = errors.New("invalid phone number")

var ibanRx = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

// NormalizePhone parses raw in the default region and returns the E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
		WithCode(goerrors.CodeBadRequest)
}

// CampaignInput creates or updates a campaign.
type CampaignInput struct {
	Title         string  `form:"title" json:"title"`
	Description   string  `form:"description" json:"description"`
	GoalAmount    float64 `form:"goal_amount" json:"goalAmount"`
	MinInvestment float64 `form:"min_investment" json:"minInvestment,omitempty"`
	EndDate       string  `form:"end_date" json:"endDate,omitempty"`
}

// Validate will run validation rules
func (r CampaignInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(3, 120)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.GoalAmount, validation.Required, validation.Min(1.0)),
		validation.Field(&r.MinInvestment, validation.Min(0.0), validation.By(func(value interface{}) error {
			if v, _ := value.(float64); v > r.GoalAmount {
				return errors.New("must not exceed the goal amount")
			}
			return nil
		})),
		validation.Field(&r.EndDate, validation.By(validDate)),
	)
}

func validDate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return errors.New("must be a date formatted as YYYY-MM-DD")
	}
	return nil
}

// InvestmentInput invests an amount in a campaign.
type InvestmentInput struct {
	CampaignID string  `form:"campaign_id" json:"campaignId"`
	Amount     float64 `form:"amount" json:"amount"`
}

// Validate will run validation rules
func (r InvestmentInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CampaignID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(1.0)),
	)
}

// WithdrawalInput requests a payout to a bank account.
type WithdrawalInput struct {
	Amount float64 `form:"amount" json:"amount"`
	IBAN   string  `form:"iban" json:"iban"`
}

// Normalize strips spaces and upper cases the IBAN.
func (r WithdrawalInput) Normalize() WithdrawalInput {
	r.IBAN = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(r.IBAN), " ", ""))
	return r
}

// Validate will run validation rules
func (r WithdrawalInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Required, validation.Min(1.0)),
		validation.Field(&r.IBAN, validation.Required, validation.Match(ibanRx)),
	)
}

// KYCUploadInput describes a document upload.
type KYCUploadInput struct {
	Type  KYCDocumentType `form:"type" json:"type"`
	Phone string          `form:"phone" json:"phone,omitempty"`
}

// Validate will run validation rules
func (r KYCUploadInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In(
			KYCIDCard, KYCPassport, KYCProofOfAddress, KYCCompanyRegistry,
		)),
	)
}

// AdminUserInput creates a platform account.
type AdminUserInput struct {
	Email     string `form:"email" json:"email"`
	FirstName string `form:"first_name" json:"firstName"`
	LastName  string `form:"last_name" json:"lastName"`
	Phone     string `form:"phone" json:"phone,omitempty"`
	Role      string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r AdminUserInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 80)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 80)),
		validation.Field(&r.Role, validation.Required, validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if _, ok := crowdfund.ParseRole(s); !ok {
				return errors.New("must be investor, business or admin")
			}
			return nil
		})),
	)
}

// RejectInput carries the reason of a rejection.
type RejectInput struct {
	Reason string `form:"reason" json:"reason"`
}

// Validate will run validation rules
func (r RejectInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

// DepositInput starts a wallet top up.
type DepositInput struct {
	Amount    float64 `form:"amount" json:"amount"`
	ReturnURL string  `form:"return_url" json:"returnUrl,omitempty"`
}

// Validate will run validation rules
func (r DepositInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Required, validation.Min(1.0)),
		validation.Field(&r.ReturnURL, is.URL),
	)
}
