package fundnova

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction records one payment-provider exchange, 1:1 with a donation
// attempt. The provider transaction id, when present, is the idempotency key
// that shields the state machine from duplicate webhook delivery.
type Transaction struct {
	ID         int `json:"id"`
	DonationID int `json:"donation_id"`

	Provider              string  `json:"provider"`
	ProviderTransactionID *string `json:"provider_transaction_id"`

	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`

	Status       TransactionStatus `json:"status"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`

	// Raw provider payload, kept opaque for manual reconciliation. Never
	// surfaced through the API.
	RawResponse json.RawMessage `json:"-"`

	ProcessedAt time.Time `json:"processed_at"`
}
