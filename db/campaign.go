package db

import (
	"context"
	"errors"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type campaign struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Name string `db:"name"`
	Slug string `db:"slug"`

	OrganizationID int `db:"organization_id"`

	TargetAmount    decimal.Decimal `db:"target_amount"`
	CollectedAmount decimal.Decimal `db:"collected_amount"`
	DonorCount      int             `db:"donor_count"`

	Status      string     `db:"status"`
	CompletedAt *time.Time `db:"completed_at"`
}

func (s *DB) Campaign(ctx context.Context, id int) (*fundnova.Campaign, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM campaigns WHERE id = $1 LIMIT 1", id)
	c, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[campaign])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToCampaign(c), nil
}

func (s *DB) CampaignBySlug(ctx context.Context, slug string) (*fundnova.Campaign, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM campaigns WHERE slug = $1 LIMIT 1", slug)
	c, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[campaign])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return internalToCampaign(c), nil
}

func (s *DB) CreateCampaign(ctx context.Context, c *fundnova.Campaign) error {
	if c.Slug == "" {
		c.Slug = fundnova.CampaignSlug(c.Name)
	}
	var id int
	var createdAt time.Time
	err := s.conn.QueryRow(ctx,
		"INSERT INTO campaigns (name, slug, organization_id, target_amount, status) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		c.Name, c.Slug, c.OrganizationID, c.TargetAmount, c.Status,
	).Scan(&id, &createdAt)
	if err == nil {
		c.ID = id
		c.CreatedAt = createdAt
	}
	return err
}

// SumCompletedDonations recomputes a campaign's total from its donations.
// Reconciliation/debug use only, never the hot path.
func (s *DB) SumCompletedDonations(ctx context.Context, campaignID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.conn.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = $1 AND status = 'completed'",
		campaignID,
	).Scan(&sum)
	return sum, err
}

// applyCompletedDonationTx is the single atomic ledger apply. The increment
// statement takes the row lock that serializes concurrent completions on the
// same campaign; the follow-up conditional UPDATE is the exactly-once gate
// for auto-completion.
func applyCompletedDonationTx(ctx context.Context, tx pgx.Tx, campaignID int, amount decimal.Decimal) (*fundnova.LedgerResult, error) {
	var res fundnova.LedgerResult
	err := tx.QueryRow(ctx,
		"UPDATE campaigns SET collected_amount = collected_amount + $2, donor_count = donor_count + 1 WHERE id = $1 RETURNING collected_amount, donor_count",
		campaignID, amount,
	).Scan(&res.CollectedAmount, &res.DonorCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fundnova.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		"UPDATE campaigns SET status = 'completed', completed_at = NOW() WHERE id = $1 AND status = 'active' AND collected_amount >= target_amount",
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	res.AutoCompleted = tag.RowsAffected() > 0

	return &res, nil
}

// reverseCompletedDonationTx undoes a ledger apply when a donation is
// refunded. The campaign status is left alone: a completed campaign stays
// completed even if a refund drops it back under target.
func reverseCompletedDonationTx(ctx context.Context, tx pgx.Tx, campaignID int, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		"UPDATE campaigns SET collected_amount = collected_amount - $2, donor_count = donor_count - 1 WHERE id = $1",
		campaignID, amount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fundnova.ErrNotFound
	}
	return nil
}

func internalToCampaign(c *campaign) *fundnova.Campaign {
	return &fundnova.Campaign{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,

		Name: c.Name,
		Slug: c.Slug,

		OrganizationID: c.OrganizationID,

		TargetAmount:    c.TargetAmount,
		CollectedAmount: c.CollectedAmount,
		DonorCount:      c.DonorCount,

		Status:      fundnova.CampaignStatus(c.Status),
		CompletedAt: c.CompletedAt,
	}
}
