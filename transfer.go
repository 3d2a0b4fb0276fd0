package fundnova

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferMatched   TransferStatus = "matched"
	TransferExpired   TransferStatus = "expired"
	TransferCancelled TransferStatus = "cancelled"
)

// DefaultTransferExpiryDays seeds the runtime flag deciding how long a donor
// has to complete the bank transfer before the reference goes stale.
const DefaultTransferExpiryDays = 7

const referenceSuffixLength = 5

var referenceCodeRegexp = regexp.MustCompile(`^SBP-\d{8}-[A-Z0-9]{5}$`)

// BankAccount is the destination account shown to the donor. It is
// snapshotted onto the reference so the audit trail survives the organization
// later changing its primary account.
type BankAccount struct {
	ID             int    `json:"id"`
	OrganizationID int    `json:"organization_id"`
	BankName       string `json:"bank_name"`
	IBAN           string `json:"iban"`
	AccountHolder  string `json:"account_holder"`
	Primary        bool   `json:"primary"`
}

// BankTransferReference reserves a human-typable code a donor puts in the
// description of an informal bank transfer, so a later statement import can
// be reconciled against it.
type BankTransferReference struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Code string `json:"code"`

	CampaignID     *int `json:"campaign_id"`
	OrganizationID int  `json:"organization_id"`
	DonorID        *int `json:"donor_id"`

	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Currency       string          `json:"currency"`

	SenderName string `json:"sender_name"`
	SenderIBAN string `json:"sender_iban,omitempty"`

	// Destination account snapshot.
	BankName      string `json:"bank_name"`
	IBAN          string `json:"iban"`
	AccountHolder string `json:"account_holder"`

	Status            TransferStatus   `json:"status"`
	MatchedDonationID *int             `json:"matched_donation_id"`
	Discrepancy       *decimal.Decimal `json:"discrepancy,omitempty"`

	ExpiresAt time.Time  `json:"expires_at"`
	MatchedAt *time.Time `json:"matched_at"`
}

// NewReferenceCode builds a candidate SBP-YYYYMMDD-XXXXX code. Uniqueness is
// only guaranteed by the caller retrying on database collision.
func NewReferenceCode(at time.Time) string {
	return fmt.Sprintf("SBP-%s-%s", at.Format("20060102"), RandomReferenceSuffix(referenceSuffixLength))
}

func ValidReferenceCode(code string) bool {
	return referenceCodeRegexp.MatchString(code)
}
