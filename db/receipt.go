package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
)

type receipt struct {
	ID         int       `db:"id"`
	DonationID int       `db:"donation_id"`
	Year       int       `db:"year"`
	Sequence   int       `db:"sequence"`
	Number     string    `db:"number"`
	IssuedAt   time.Time `db:"issued_at"`
}

func (s *DB) Receipt(ctx context.Context, donationID int) (*fundnova.Receipt, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM receipts WHERE donation_id = $1 LIMIT 1", donationID)
	r, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[receipt])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToReceipt(r), nil
}

// issueReceiptTx allocates the next sequence for the calendar year. The
// counter row UPDATE takes a row lock, so concurrent completions within the
// same year serialize and the sequence has no gaps or duplicates.
func issueReceiptTx(ctx context.Context, tx pgx.Tx, donationID int, now time.Time) (*fundnova.Receipt, error) {
	year := now.Year()
	if _, err := tx.Exec(ctx,
		"INSERT INTO receipt_counters (year, last_sequence) VALUES ($1, 0) ON CONFLICT (year) DO NOTHING",
		year,
	); err != nil {
		return nil, err
	}

	var seq int
	if err := tx.QueryRow(ctx,
		"UPDATE receipt_counters SET last_sequence = last_sequence + 1 WHERE year = $1 RETURNING last_sequence",
		year,
	).Scan(&seq); err != nil {
		return nil, err
	}

	rcpt := &fundnova.Receipt{
		DonationID: donationID,
		Year:       year,
		Sequence:   seq,
		Number:     fundnova.FormatReceiptNumber(year, seq),
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO receipts (donation_id, year, sequence, number) VALUES ($1, $2, $3, $4) RETURNING id, issued_at`,
		donationID, year, seq, rcpt.Number,
	).Scan(&rcpt.ID, &rcpt.IssuedAt)
	if err != nil {
		return nil, err
	}
	return rcpt, nil
}

func receiptTx(ctx context.Context, tx pgx.Tx, donationID int) (*fundnova.Receipt, error) {
	rows, _ := tx.Query(ctx, "SELECT * FROM receipts WHERE donation_id = $1 LIMIT 1", donationID)
	r, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[receipt])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToReceipt(r), nil
}

func internalToReceipt(r *receipt) *fundnova.Receipt {
	return &fundnova.Receipt{
		ID:         r.ID,
		DonationID: r.DonationID,
		Year:       r.Year,
		Sequence:   r.Sequence,
		Number:     r.Number,
		IssuedAt:   r.IssuedAt,
	}
}
