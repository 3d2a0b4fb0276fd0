// Package gateway abstracts the card payment provider behind a normalized
// charge/refund capability. The core never sees a provider's wire format
// beyond the opaque raw payload stored for reconciliation.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	// OutcomeUnknown covers timeouts and transport failures: the charge may
	// or may not have gone through, and only a later webhook can tell.
	OutcomeUnknown Outcome = "unknown"
)

type CardMeta struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// Result is the normalized provider response shared by synchronous charges
// and inbound webhooks.
type Result struct {
	Outcome Outcome

	Provider              string
	ProviderTransactionID string

	Fee decimal.Decimal

	DeclineCode    string
	DeclineMessage string

	Card *CardMeta

	// Raw provider payload, stored verbatim on the transaction record.
	Raw json.RawMessage
}

type ChargeRequest struct {
	CardToken string
	Amount    decimal.Decimal
	Currency  string

	// IdempotencyKey shields against double charges when a timed-out call is
	// retried.
	IdempotencyKey string
}

type RefundRequest struct {
	ProviderTransactionID string
	Amount                decimal.Decimal
	Reason                string
}

type Adapter interface {
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
}

// Error distinguishes provider-declined (not retryable, surfaces to the
// donor) from provider-unreachable (retryable, outcome unknown).
type Error struct {
	Retryable bool
	Message   string

	WrappedError error
}

func (e *Error) Error() string {
	if e.WrappedError != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.WrappedError)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.WrappedError
}

func IsRetryable(err error) bool {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Retryable
	}
	return false
}
