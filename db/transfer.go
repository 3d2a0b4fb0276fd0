package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type bankAccount struct {
	ID             int    `db:"id"`
	OrganizationID int    `db:"organization_id"`
	BankName       string `db:"bank_name"`
	IBAN           string `db:"iban"`
	AccountHolder  string `db:"account_holder"`
	Primary        bool   `db:"is_primary"`
}

type bankReference struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Code string `db:"code"`

	CampaignID     *int `db:"campaign_id"`
	OrganizationID int  `db:"organization_id"`
	DonorID        *int `db:"donor_id"`

	ExpectedAmount decimal.Decimal `db:"expected_amount"`
	Currency       string          `db:"currency"`

	SenderName string `db:"sender_name"`
	SenderIBAN string `db:"sender_iban"`

	BankName      string `db:"bank_name"`
	IBAN          string `db:"iban"`
	AccountHolder string `db:"account_holder"`

	Status            string           `db:"status"`
	MatchedDonationID *int             `db:"matched_donation_id"`
	Discrepancy       *decimal.Decimal `db:"discrepancy"`

	ExpiresAt time.Time  `db:"expires_at"`
	MatchedAt *time.Time `db:"matched_at"`
}

func (s *DB) PrimaryBankAccount(ctx context.Context, organizationID int) (*fundnova.BankAccount, error) {
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM bank_accounts WHERE organization_id = $1 AND is_primary = true LIMIT 1",
		organizationID,
	)
	acc, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[bankAccount])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToBankAccount(acc), nil
}

func (s *DB) CreateBankAccount(ctx context.Context, acc *fundnova.BankAccount) error {
	var id int
	err := s.conn.QueryRow(ctx,
		"INSERT INTO bank_accounts (organization_id, bank_name, iban, account_holder, is_primary) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		acc.OrganizationID, acc.BankName, acc.IBAN, acc.AccountHolder, acc.Primary,
	).Scan(&id)
	if err == nil {
		acc.ID = id
	}
	return err
}

func (s *DB) BankReference(ctx context.Context, code string) (*fundnova.BankTransferReference, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM bank_transfer_references WHERE code = $1 LIMIT 1", code)
	ref, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[bankReference])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToBankReference(ref), nil
}

// CreateBankReference persists a freshly generated reference. A unique
// violation on the code column is reported as ErrReferenceCollision so the
// caller can regenerate and retry.
func (s *DB) CreateBankReference(ctx context.Context, ref *fundnova.BankTransferReference) error {
	var id int
	var createdAt time.Time
	err := s.conn.QueryRow(ctx, `
		INSERT INTO bank_transfer_references
			(code, campaign_id, organization_id, donor_id, expected_amount, currency, sender_name, sender_iban, bank_name, iban, account_holder, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		ref.Code, ref.CampaignID, ref.OrganizationID, ref.DonorID, ref.ExpectedAmount, ref.Currency,
		ref.SenderName, ref.SenderIBAN, ref.BankName, ref.IBAN, ref.AccountHolder, ref.Status, ref.ExpiresAt,
	).Scan(&id, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fundnova.ErrReferenceCollision
		}
		return err
	}
	ref.ID = id
	ref.CreatedAt = createdAt
	return nil
}

// MatchBankReference is the exclusive match operation: the conditional UPDATE
// only succeeds from `pending`, so two concurrent matchers on the same code
// get exactly one success. The completed donation, ledger apply and receipt
// all commit in the same transaction as the reference flip.
func (s *DB) MatchBankReference(ctx context.Context, code string, actual decimal.Decimal, discrepancy *decimal.Decimal) (*fundnova.MatchResult, error) {
	var res fundnova.MatchResult
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		rows, _ := tx.Query(ctx,
			"UPDATE bank_transfer_references SET status = 'matched', matched_at = NOW(), discrepancy = $2 WHERE code = $1 AND status = 'pending' RETURNING *",
			code, discrepancy,
		)
		ref, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[bankReference])
		if errors.Is(err, pgx.ErrNoRows) {
			return referenceConflict(ctx, tx, code)
		} else if err != nil {
			return err
		}

		var donationID int
		var createdAt, completedAt time.Time
		if err := tx.QueryRow(ctx, `
			INSERT INTO donations (campaign_id, organization_id, donor_id, anonymous, amount, currency, status, rail, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'completed', 'bank_transfer', NOW())
			RETURNING id, created_at, completed_at`,
			ref.CampaignID, ref.OrganizationID, ref.DonorID, ref.DonorID == nil, actual, ref.Currency,
		).Scan(&donationID, &createdAt, &completedAt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"UPDATE bank_transfer_references SET matched_donation_id = $2 WHERE id = $1",
			ref.ID, donationID,
		); err != nil {
			return err
		}
		ref.MatchedDonationID = &donationID

		if ref.CampaignID != nil {
			ledger, err := applyCompletedDonationTx(ctx, tx, *ref.CampaignID, actual)
			if err != nil {
				return err
			}
			res.Ledger = ledger
		}

		receipt, err := issueReceiptTx(ctx, tx, donationID, time.Now())
		if err != nil {
			return err
		}
		res.Receipt = receipt

		res.Reference = internalToBankReference(ref)
		res.Donation = &fundnova.Donation{
			ID:             donationID,
			CreatedAt:      createdAt,
			CampaignID:     ref.CampaignID,
			OrganizationID: ref.OrganizationID,
			DonorID:        ref.DonorID,
			Anonymous:      ref.DonorID == nil,
			Amount:         actual,
			Currency:       ref.Currency,
			Status:         fundnova.DonationCompleted,
			Rail:           fundnova.RailBankTransfer,
			RefundStatus:   fundnova.RefundNone,
			CompletedAt:    &completedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *DB) CancelBankReference(ctx context.Context, code string) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE bank_transfer_references SET status = 'cancelled' WHERE code = $1 AND status = 'pending'",
		code,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.BankReference(ctx, code); err != nil {
			return err
		}
		return fundnova.ErrInvalidTransition
	}
	return nil
}

// ExpireStaleReferences is safe to run concurrently with matching: the
// conditional UPDATE only touches rows still pending, so a reference matched
// in the same instant stays matched.
func (s *DB) ExpireStaleReferences(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.conn.Exec(ctx,
		"UPDATE bank_transfer_references SET status = 'expired' WHERE status = 'pending' AND expires_at <= $1",
		now,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func referenceConflict(ctx context.Context, tx pgx.Tx, code string) error {
	rows, _ := tx.Query(ctx, "SELECT * FROM bank_transfer_references WHERE code = $1 LIMIT 1", code)
	ref, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[bankReference])
	if errors.Is(err, pgx.ErrNoRows) {
		return fundnova.ErrNotFound
	} else if err != nil {
		return err
	}
	switch fundnova.TransferStatus(ref.Status) {
	case fundnova.TransferMatched:
		return fundnova.Statusf(409, "Reference already matched")
	case fundnova.TransferExpired:
		return fundnova.Statusf(409, "Reference expired")
	case fundnova.TransferCancelled:
		return fundnova.Statusf(409, "Reference cancelled")
	}
	return fundnova.ErrInvalidTransition
}

func internalToBankAccount(a *bankAccount) *fundnova.BankAccount {
	return &fundnova.BankAccount{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		BankName:       a.BankName,
		IBAN:           a.IBAN,
		AccountHolder:  a.AccountHolder,
		Primary:        a.Primary,
	}
}

func internalToBankReference(r *bankReference) *fundnova.BankTransferReference {
	return &fundnova.BankTransferReference{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,

		Code: r.Code,

		CampaignID:     r.CampaignID,
		OrganizationID: r.OrganizationID,
		DonorID:        r.DonorID,

		ExpectedAmount: r.ExpectedAmount,
		Currency:       r.Currency,

		SenderName: r.SenderName,
		SenderIBAN: r.SenderIBAN,

		BankName:      r.BankName,
		IBAN:          r.IBAN,
		AccountHolder: r.AccountHolder,

		Status:            fundnova.TransferStatus(r.Status),
		MatchedDonationID: r.MatchedDonationID,
		Discrepancy:       r.Discrepancy,

		ExpiresAt: r.ExpiresAt,
		MatchedAt: r.MatchedAt,
	}
}
