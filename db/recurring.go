package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type recurringDonation struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	DonorID        int  `db:"donor_id"`
	CampaignID     *int `db:"campaign_id"`
	OrganizationID *int `db:"organization_id"`

	Amount   decimal.Decimal `db:"amount"`
	Currency string          `db:"currency"`

	Frequency string `db:"frequency"`

	NextPaymentDate time.Time  `db:"next_payment_date"`
	LastPaymentDate *time.Time `db:"last_payment_date"`

	TotalDonated decimal.Decimal `db:"total_donated"`
	PaymentCount int             `db:"payment_count"`

	Status string `db:"status"`

	CardToken string `db:"card_token"`

	FailureCount int    `db:"failure_count"`
	LastError    string `db:"last_error"`
}

func (s *DB) RecurringDonation(ctx context.Context, id int) (*fundnova.RecurringDonation, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM recurring_donations WHERE id = $1 LIMIT 1", id)
	sub, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[recurringDonation])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToRecurring(sub), nil
}

func (s *DB) CreateRecurringDonation(ctx context.Context, sub *fundnova.RecurringDonation) error {
	if sub.Currency == "" {
		sub.Currency = fundnova.DefaultCurrency
	}
	if sub.Status == "" {
		sub.Status = fundnova.SubscriptionActive
	}
	var id int
	var createdAt time.Time
	err := s.conn.QueryRow(ctx, `
		INSERT INTO recurring_donations (donor_id, campaign_id, organization_id, amount, currency, frequency, next_payment_date, status, card_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		sub.DonorID, sub.CampaignID, sub.OrganizationID, sub.Amount, sub.Currency,
		sub.Frequency, sub.NextPaymentDate, sub.Status, sub.CardToken,
	).Scan(&id, &createdAt)
	if err == nil {
		sub.ID = id
		sub.CreatedAt = createdAt
	}
	return err
}

func (s *DB) UpdateRecurringDonation(ctx context.Context, id int, upd fundnova.RecurringUpdate) error {
	ub := newUpdateBuilder()
	if v := upd.Status; v != nil {
		ub.AddUpdate("status = %s", v)
	}
	if v := upd.NextPaymentDate; v != nil {
		ub.AddUpdate("next_payment_date = %s", v)
	}
	if v := upd.LastPaymentDate; v != nil {
		ub.AddUpdate("last_payment_date = %s", v)
	}
	if v := upd.TotalDonated; v != nil {
		ub.AddUpdate("total_donated = %s", v)
	}
	if v := upd.PaymentCount; v != nil {
		ub.AddUpdate("payment_count = %s", v)
	}
	if v := upd.FailureCount; v != nil {
		ub.AddUpdate("failure_count = %s", v)
	}
	if v := upd.LastError; v != nil {
		ub.AddUpdate("last_error = %s", v)
	}
	if err := ub.CheckUpdates(); err != nil {
		return err
	}
	fb := ub.MakeFilter()
	fb.AddConstraint("id = %s", id)
	_, err := s.conn.Exec(ctx, "UPDATE recurring_donations SET "+fb.WithUpdate(), fb.Args()...)
	return err
}

// DueSubscriptions returns every active subscription whose next payment date
// has passed, oldest first. The billing sweep iterates over this set.
func (s *DB) DueSubscriptions(ctx context.Context, asOf time.Time) ([]*fundnova.RecurringDonation, error) {
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM recurring_donations WHERE status = 'active' AND next_payment_date <= $1 ORDER BY next_payment_date ASC",
		asOf,
	)
	subs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[recurringDonation])
	if err != nil {
		return nil, err
	}
	return mapper(subs, internalToRecurring), nil
}

func internalToRecurring(r *recurringDonation) *fundnova.RecurringDonation {
	return &fundnova.RecurringDonation{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,

		DonorID:        r.DonorID,
		CampaignID:     r.CampaignID,
		OrganizationID: r.OrganizationID,

		Amount:   r.Amount,
		Currency: r.Currency,

		Frequency: fundnova.Frequency(r.Frequency),

		NextPaymentDate: r.NextPaymentDate,
		LastPaymentDate: r.LastPaymentDate,

		TotalDonated: r.TotalDonated,
		PaymentCount: r.PaymentCount,

		Status: fundnova.SubscriptionStatus(r.Status),

		CardToken: r.CardToken,

		FailureCount: r.FailureCount,
		LastError:    r.LastError,
	}
}
