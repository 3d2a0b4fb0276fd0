package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the card provider's REST API. All calls carry the caller's
// context plus a hard timeout; a timeout is reported as a retryable error
// with unknown outcome, never as a decline.
type Client struct {
	name     string
	endpoint string
	apiKey   string

	client *http.Client
}

var _ Adapter = (*Client)(nil)

func NewClient(name, endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type chargePayload struct {
	CardToken      string          `json:"card_token"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type refundPayload struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

type providerResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Fee    decimal.Decimal `json:"fee"`

	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`

	Card *CardMeta `json:"card"`
}

func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	return c.post(ctx, "/v1/charges", chargePayload{
		CardToken:      req.CardToken,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	})
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	return c.post(ctx, "/v1/refunds", refundPayload{
		TransactionID: req.ProviderTransactionID,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Message: "could not encode provider request", WrappedError: err}
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: "could not build provider request", WrappedError: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(hreq)
	if err != nil {
		// Transport failure or timeout: the outcome is unknown, a later
		// webhook or manual reconciliation settles it.
		return nil, &Error{Retryable: isTimeout(err), Message: "provider unreachable", WrappedError: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Retryable: true, Message: "could not read provider response", WrappedError: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &Error{Retryable: true, Message: fmt.Sprintf("provider returned status %d", resp.StatusCode)}
	}

	var pr providerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, &Error{Message: "could not decode provider response", WrappedError: err}
	}

	res := &Result{
		Provider:              c.name,
		ProviderTransactionID: pr.ID,
		Fee:                   pr.Fee,
		Card:                  pr.Card,
		Raw:                   raw,
	}
	switch pr.Status {
	case "succeeded":
		res.Outcome = OutcomeApproved
	case "declined", "failed":
		res.Outcome = OutcomeDeclined
		res.DeclineCode = pr.DeclineCode
		res.DeclineMessage = pr.Message
	default:
		res.Outcome = OutcomeUnknown
	}
	return res, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var terr interface{ Timeout() bool }
	if errors.As(err, &terr) {
		return terr.Timeout()
	}
	// Connection refused and friends are retryable too
	return true
}
