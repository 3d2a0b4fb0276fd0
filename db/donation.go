package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type donation struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	CampaignID     *int `db:"campaign_id"`
	OrganizationID int  `db:"organization_id"`
	DonorID        *int `db:"donor_id"`
	Anonymous      bool `db:"anonymous"`

	Amount   decimal.Decimal `db:"amount"`
	Currency string          `db:"currency"`

	Status string `db:"status"`
	Rail   string `db:"rail"`

	ProviderTransactionID *string `db:"provider_transaction_id"`

	RefundStatus string `db:"refund_status"`
	RefundReason string `db:"refund_reason"`
	FailReason   string `db:"fail_reason"`

	CompletedAt *time.Time `db:"completed_at"`
}

func (s *DB) Donation(ctx context.Context, id int) (*fundnova.Donation, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM donations WHERE id = $1 LIMIT 1", id)
	d, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToDonation(d), nil
}

func (s *DB) Donations(ctx context.Context, filter fundnova.DonationFilter) ([]*fundnova.Donation, error) {
	fb := newFilterBuilder()
	donationFilterQuery(&filter, fb)
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM donations WHERE "+fb.Where()+" ORDER BY created_at DESC, id DESC "+FormatLimitOffset(filter.Limit, filter.Offset),
		fb.Args()...,
	)
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[donation])
	if err != nil {
		return nil, err
	}
	return mapper(donations, internalToDonation), nil
}

func (s *DB) CountDonations(ctx context.Context, filter fundnova.DonationFilter) (int, error) {
	fb := newFilterBuilder()
	donationFilterQuery(&filter, fb)
	var cnt int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(id) FROM donations WHERE "+fb.Where(), fb.Args()...).Scan(&cnt)
	return cnt, err
}

func (s *DB) CreateDonation(ctx context.Context, d *fundnova.Donation) error {
	if d.Currency == "" {
		d.Currency = fundnova.DefaultCurrency
	}
	if d.Status == "" {
		d.Status = fundnova.DonationPending
	}
	if d.RefundStatus == "" {
		d.RefundStatus = fundnova.RefundNone
	}
	var id int
	var createdAt time.Time
	err := s.conn.QueryRow(ctx, `
		INSERT INTO donations (campaign_id, organization_id, donor_id, anonymous, amount, currency, status, rail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		d.CampaignID, d.OrganizationID, d.DonorID, d.Anonymous, d.Amount, d.Currency, d.Status, d.Rail,
	).Scan(&id, &createdAt)
	if err == nil {
		d.ID = id
		d.CreatedAt = createdAt
	}
	return err
}

func (s *DB) UpdateDonation(ctx context.Context, id int, upd fundnova.DonationUpdate) error {
	ub := newUpdateBuilder()
	if v := upd.ProviderTransactionID; v != nil {
		ub.AddUpdate("provider_transaction_id = %s", v)
	}
	if v := upd.RefundStatus; v != nil {
		ub.AddUpdate("refund_status = %s", v)
	}
	if v := upd.RefundReason; v != nil {
		ub.AddUpdate("refund_reason = %s", v)
	}
	if err := ub.CheckUpdates(); err != nil {
		return err
	}
	fb := ub.MakeFilter()
	fb.AddConstraint("id = %s", id)
	_, err := s.conn.Exec(ctx, "UPDATE donations SET "+fb.WithUpdate(), fb.Args()...)
	return err
}

// CompleteDonation flips a pending donation to completed, applies the
// campaign ledger and issues the receipt, all in one transaction. Calling it
// on an already-completed donation is a no-op reporting AlreadyCompleted.
func (s *DB) CompleteDonation(ctx context.Context, id int) (*fundnova.CompletionResult, error) {
	var res fundnova.CompletionResult
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		rows, _ := tx.Query(ctx,
			"UPDATE donations SET status = 'completed', completed_at = NOW() WHERE id = $1 AND status = 'pending' RETURNING *",
			id,
		)
		d, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[donation])
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := donationTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if existing.Status != fundnova.DonationCompleted {
				return fundnova.ErrInvalidTransition
			}
			res.AlreadyCompleted = true
			res.Donation = existing
			res.Receipt, _ = receiptTx(ctx, tx, id)
			return nil
		} else if err != nil {
			return err
		}
		res.Donation = internalToDonation(d)

		if d.CampaignID != nil {
			ledger, err := applyCompletedDonationTx(ctx, tx, *d.CampaignID, d.Amount)
			if err != nil {
				return err
			}
			res.Ledger = ledger
		}

		receipt, err := issueReceiptTx(ctx, tx, id, time.Now())
		if err != nil {
			return err
		}
		res.Receipt = receipt

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *DB) FailDonation(ctx context.Context, id int, reason string) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE donations SET status = 'failed', fail_reason = $2 WHERE id = $1 AND status = 'pending'",
		id, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Donation(ctx, id); err != nil {
			return err
		}
		return fundnova.ErrInvalidTransition
	}
	return nil
}

// RequestRefund conditionally marks a completed, not-yet-refunded donation.
// Ownership and window checks belong to the caller; this is just the atomic
// state flip.
func (s *DB) RequestRefund(ctx context.Context, id int, reason string) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE donations SET refund_status = 'requested', refund_reason = $2 WHERE id = $1 AND status = 'completed' AND refund_status = 'none'",
		id, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Donation(ctx, id); err != nil {
			return err
		}
		return fundnova.ErrInvalidTransition
	}
	return nil
}

// ProcessRefund finalizes a requested refund. The status flip and the
// campaign ledger reversal share one transaction so a reconciliation sweep
// never sees a refunded donation still counted in the campaign total.
func (s *DB) ProcessRefund(ctx context.Context, id int) (*fundnova.Donation, error) {
	var refunded *fundnova.Donation
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		rows, _ := tx.Query(ctx,
			"UPDATE donations SET status = 'refunded', refund_status = 'processed' WHERE id = $1 AND status = 'completed' AND refund_status = 'requested' RETURNING *",
			id,
		)
		d, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[donation])
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := donationTx(ctx, tx, id); err != nil {
				return err
			}
			return fundnova.ErrInvalidTransition
		} else if err != nil {
			return err
		}
		refunded = internalToDonation(d)

		if d.CampaignID != nil {
			if err := reverseCompletedDonationTx(ctx, tx, *d.CampaignID, d.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func donationTx(ctx context.Context, tx pgx.Tx, id int) (*fundnova.Donation, error) {
	rows, _ := tx.Query(ctx, "SELECT * FROM donations WHERE id = $1 LIMIT 1", id)
	d, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToDonation(d), nil
}

func donationFilterQuery(filter *fundnova.DonationFilter, fb *filterBuilder) {
	if v := filter.ID; v != nil {
		fb.AddConstraint("id = %s", v)
	}
	if v := filter.CampaignID; v != nil {
		fb.AddConstraint("campaign_id = %s", v)
	}
	if v := filter.DonorID; v != nil {
		fb.AddConstraint("donor_id = %s", v)
	}
	if v := filter.Status; v != nil {
		fb.AddConstraint("status = %s", v)
	}
	if v := filter.Rail; v != nil {
		fb.AddConstraint("rail = %s", v)
	}
	if v := filter.ProviderTransactionID; v != nil {
		fb.AddConstraint("provider_transaction_id = %s", v)
	}
}

func internalToDonation(d *donation) *fundnova.Donation {
	return &fundnova.Donation{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,

		CampaignID:     d.CampaignID,
		OrganizationID: d.OrganizationID,
		DonorID:        d.DonorID,
		Anonymous:      d.Anonymous,

		Amount:   d.Amount,
		Currency: d.Currency,

		Status: fundnova.DonationStatus(d.Status),
		Rail:   fundnova.DonationRail(d.Rail),

		ProviderTransactionID: d.ProviderTransactionID,

		RefundStatus: fundnova.RefundStatus(d.RefundStatus),
		RefundReason: d.RefundReason,
		FailReason:   d.FailReason,

		CompletedAt: d.CompletedAt,
	}
}
