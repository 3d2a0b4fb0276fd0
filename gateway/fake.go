package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Fake is an in-memory Adapter for tests and local development. Outcomes are
// scripted per card token; unscripted tokens approve.
type Fake struct {
	mu sync.Mutex

	// Declined marks card tokens that should be declined.
	Declined map[string]string
	// Unreachable marks card tokens whose charge should fail with a
	// retryable transport error.
	Unreachable map[string]bool

	FeePct int64

	charges []ChargeRequest
	refunds []RefundRequest
	seq     int
}

var _ Adapter = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		Declined:    make(map[string]string),
		Unreachable: make(map[string]bool),
	}
}

func (f *Fake) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, req)

	if f.Unreachable[req.CardToken] {
		return nil, &Error{Retryable: true, Message: "provider unreachable"}
	}
	if code, ok := f.Declined[req.CardToken]; ok {
		return &Result{
			Outcome:        OutcomeDeclined,
			Provider:       "fake",
			DeclineCode:    code,
			DeclineMessage: "card declined",
		}, nil
	}

	f.seq++
	fee := req.Amount.Mul(decimal.NewFromInt(f.FeePct)).Div(decimal.NewFromInt(100))
	return &Result{
		Outcome:               OutcomeApproved,
		Provider:              "fake",
		ProviderTransactionID: fmt.Sprintf("fake_tx_%06d", f.seq),
		Fee:                   fee,
		Card:                  &CardMeta{Brand: "visa", Last4: "4242"},
	}, nil
}

func (f *Fake) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)

	f.seq++
	return &Result{
		Outcome:               OutcomeApproved,
		Provider:              "fake",
		ProviderTransactionID: fmt.Sprintf("fake_rf_%06d", f.seq),
	}, nil
}

func (f *Fake) Charges() []ChargeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChargeRequest(nil), f.charges...)
}

func (f *Fake) Refunds() []RefundRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RefundRequest(nil), f.refunds...)
}
