package fundnova

import (
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func ValidFrequency(f Frequency) bool {
	return f == FrequencyWeekly || f == FrequencyMonthly || f == FrequencyYearly
}

// NextPaymentDate advances from the given date by one billing interval.
// Months and years go through AddDate so calendar arithmetic (Jan 31 + 1
// month, leap years) is handled the way banks expect.
func NextPaymentDate(f Frequency, from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	}
	return from
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// MaxBillingFailures is the default number of consecutive charge failures
// after which a subscription is paused instead of retried.
const MaxBillingFailures = 3

// RecurringDonation is a standing instruction to create a donation
// periodically. Exactly one of CampaignID/OrganizationID decides where the
// money goes.
type RecurringDonation struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	DonorID        int  `json:"donor_id"`
	CampaignID     *int `json:"campaign_id"`
	OrganizationID *int `json:"organization_id"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	Frequency Frequency `json:"frequency"`

	NextPaymentDate time.Time  `json:"next_payment_date"`
	LastPaymentDate *time.Time `json:"last_payment_date"`

	TotalDonated decimal.Decimal `json:"total_donated"`
	PaymentCount int             `json:"payment_count"`

	Status SubscriptionStatus `json:"status"`

	// Opaque token from the card gateway. Tokenization itself is out of scope.
	CardToken string `json:"-"`

	FailureCount int    `json:"failure_count"`
	LastError    string `json:"last_error,omitempty"`
}

type RecurringUpdate struct {
	Status          *SubscriptionStatus
	NextPaymentDate *time.Time
	LastPaymentDate *time.Time
	TotalDonated    *decimal.Decimal
	PaymentCount    *int
	FailureCount    *int
	LastError       *string
}
