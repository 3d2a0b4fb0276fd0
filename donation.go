package fundnova

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

type DonationRail string

const (
	RailCard         DonationRail = "card"
	RailBankTransfer DonationRail = "bank_transfer"
	RailRecurring    DonationRail = "recurring"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundProcessed RefundStatus = "processed"
)

// DefaultRefundWindowDays seeds the runtime flag bounding how long after
// creation a donor may request a refund.
const DefaultRefundWindowDays = 14

type Donation struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Exactly one of CampaignID/OrganizationID is the target; campaign
	// donations also feed the campaign ledger, organization-level ones do not.
	// Once set, the target never changes for the donation's lifetime.
	CampaignID     *int `json:"campaign_id"`
	OrganizationID int  `json:"organization_id"`

	DonorID   *int `json:"donor_id"`
	Anonymous bool `json:"anonymous"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	Status DonationStatus `json:"status"`
	Rail   DonationRail   `json:"rail"`

	// Set by the transaction recorder once a gateway interaction is observed.
	ProviderTransactionID *string `json:"provider_transaction_id,omitempty"`

	RefundStatus RefundStatus `json:"refund_status"`
	RefundReason string       `json:"refund_reason,omitempty"`
	FailReason   string       `json:"fail_reason,omitempty"`

	CompletedAt *time.Time `json:"completed_at"`
}

// ValidDonationTransition encodes the lifecycle:
// pending -> completed | failed, completed -> refunded.
// Everything else is rejected with no side effect.
func ValidDonationTransition(from, to DonationStatus) bool {
	switch from {
	case DonationPending:
		return to == DonationCompleted || to == DonationFailed
	case DonationCompleted:
		return to == DonationRefunded
	default:
		return false
	}
}

// InRefundWindow reports whether a refund may still be requested at `now`,
// given the window configured at runtime. The edge is inclusive.
func (d *Donation) InRefundWindow(now time.Time, window time.Duration) bool {
	return now.Sub(d.CreatedAt) <= window
}

type DonationFilter struct {
	ID         *int
	CampaignID *int
	DonorID    *int
	Status     *DonationStatus
	Rail       *DonationRail

	ProviderTransactionID *string

	Limit  int
	Offset int
}

type DonationUpdate struct {
	ProviderTransactionID *string
	RefundStatus          *RefundStatus
	RefundReason          *string
}
