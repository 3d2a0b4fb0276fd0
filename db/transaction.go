package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type transaction struct {
	ID         int `db:"id"`
	DonationID int `db:"donation_id"`

	Provider              string  `db:"provider"`
	ProviderTransactionID *string `db:"provider_transaction_id"`

	Amount    decimal.Decimal `db:"amount"`
	Fee       decimal.Decimal `db:"fee"`
	NetAmount decimal.Decimal `db:"net_amount"`

	Status       string `db:"status"`
	ErrorCode    string `db:"error_code"`
	ErrorMessage string `db:"error_message"`
	RawResponse  []byte `db:"raw_response"`

	ProcessedAt time.Time `db:"processed_at"`
}

func (s *DB) Transactions(ctx context.Context, donationID int) ([]*fundnova.Transaction, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM transactions WHERE donation_id = $1 ORDER BY processed_at DESC", donationID)
	txs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[transaction])
	if err != nil {
		return nil, err
	}
	return mapper(txs, internalToTransaction), nil
}

func (s *DB) TransactionByProviderID(ctx context.Context, provider, providerTransactionID string) (*fundnova.Transaction, error) {
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM transactions WHERE provider = $1 AND provider_transaction_id = $2 LIMIT 1",
		provider, providerTransactionID,
	)
	t, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[transaction])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToTransaction(t), nil
}

// RecordTransaction upserts a provider exchange keyed on the provider
// transaction id. A record that is already completed is left untouched
// (duplicate webhook delivery); the return value reports whether this call
// was the first completed observation, which is what decides whether the
// caller advances the donation state machine.
func (s *DB) RecordTransaction(ctx context.Context, t *fundnova.Transaction) (bool, error) {
	if t.ProviderTransactionID == nil {
		// No idempotency key, plain append
		err := s.insertTransaction(ctx, t)
		return err == nil && t.Status == fundnova.TransactionCompleted, err
	}

	var first bool
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		var priorStatus *string
		err := tx.QueryRow(ctx,
			"SELECT status FROM transactions WHERE provider_transaction_id = $1 FOR UPDATE",
			*t.ProviderTransactionID,
		).Scan(&priorStatus)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if priorStatus != nil && fundnova.TransactionStatus(*priorStatus) == fundnova.TransactionCompleted {
			// Duplicate webhook, keep the first record
			return nil
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO transactions (donation_id, provider, provider_transaction_id, amount, fee, net_amount, status, error_code, error_message, raw_response)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (provider_transaction_id) DO UPDATE SET
				status = EXCLUDED.status,
				fee = EXCLUDED.fee,
				net_amount = EXCLUDED.net_amount,
				error_code = EXCLUDED.error_code,
				error_message = EXCLUDED.error_message,
				raw_response = EXCLUDED.raw_response,
				processed_at = NOW()
			RETURNING id, processed_at`,
			t.DonationID, t.Provider, t.ProviderTransactionID, t.Amount, t.Fee, t.NetAmount,
			t.Status, t.ErrorCode, t.ErrorMessage, t.RawResponse,
		).Scan(&t.ID, &t.ProcessedAt); err != nil {
			return err
		}

		first = t.Status == fundnova.TransactionCompleted
		return nil
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

func (s *DB) insertTransaction(ctx context.Context, t *fundnova.Transaction) error {
	return s.conn.QueryRow(ctx, `
		INSERT INTO transactions (donation_id, provider, provider_transaction_id, amount, fee, net_amount, status, error_code, error_message, raw_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, processed_at`,
		t.DonationID, t.Provider, t.ProviderTransactionID, t.Amount, t.Fee, t.NetAmount,
		t.Status, t.ErrorCode, t.ErrorMessage, t.RawResponse,
	).Scan(&t.ID, &t.ProcessedAt)
}

func internalToTransaction(t *transaction) *fundnova.Transaction {
	return &fundnova.Transaction{
		ID:         t.ID,
		DonationID: t.DonationID,

		Provider:              t.Provider,
		ProviderTransactionID: t.ProviderTransactionID,

		Amount:    t.Amount,
		Fee:       t.Fee,
		NetAmount: t.NetAmount,

		Status:       fundnova.TransactionStatus(t.Status),
		ErrorCode:    t.ErrorCode,
		ErrorMessage: t.ErrorMessage,
		RawResponse:  t.RawResponse,

		ProcessedAt: t.ProcessedAt,
	}
}
