package fundnova

import (
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign carries only the ledger-relevant subset of a campaign. The rest of
// the campaign workflow (verification, evidence, transparency scoring) lives
// with external collaborators.
type Campaign struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name string `json:"name"`
	Slug string `json:"slug"`

	OrganizationID int `json:"organization_id"`

	TargetAmount    decimal.Decimal `json:"target_amount"`
	CollectedAmount decimal.Decimal `json:"collected_amount"`
	DonorCount      int             `json:"donor_count"`

	Status      CampaignStatus `json:"status"`
	CompletedAt *time.Time     `json:"completed_at"`
}

// AcceptsDonations is the gate every intake path checks before creating a
// pending donation.
func (c *Campaign) AcceptsDonations() bool {
	return c.Status == CampaignActive
}

func CampaignSlug(name string) string {
	return slug.Make(name)
}

// LedgerResult is what a single atomic ledger apply reports back: the new
// running totals and whether this particular apply crossed the target and
// completed the campaign.
type LedgerResult struct {
	CollectedAmount decimal.Decimal
	DonorCount      int
	AutoCompleted   bool
}
