package sudoapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCreateDonationValidation(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 1000)

	err := base.CreateDonation(ctx, &fundnova.Donation{
		CampaignID: &campaign.ID,
		Amount:     decimal.NewFromInt(-5),
		Rail:       fundnova.RailCard,
	})
	require.Error(t, err, "negative amount should be rejected")

	err = base.CreateDonation(ctx, &fundnova.Donation{
		CampaignID: &campaign.ID,
		Amount:     decimal.NewFromInt(1),
		Rail:       fundnova.RailCard,
	})
	require.Error(t, err, "amount below the minimum should be rejected")

	donation := &fundnova.Donation{
		CampaignID: &campaign.ID,
		Amount:     decimal.NewFromInt(50),
		Rail:       fundnova.RailCard,
	}
	require.NoError(t, base.CreateDonation(ctx, donation))
	require.Equal(t, fundnova.DonationPending, donation.Status)
	require.Equal(t, fundnova.DefaultCurrency, donation.Currency)
	require.Equal(t, campaign.OrganizationID, donation.OrganizationID)
}

func TestCreateDonationInactiveCampaign(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 1000)

	store.mu.Lock()
	store.campaigns[campaign.ID].Status = fundnova.CampaignCancelled
	store.mu.Unlock()

	err := base.CreateDonation(ctx, &fundnova.Donation{
		CampaignID: &campaign.ID,
		Amount:     decimal.NewFromInt(50),
		Rail:       fundnova.RailCard,
	})
	require.Error(t, err)
	require.Equal(t, 400, fundnova.ErrorCode(err))
}

func TestCompleteDonationIdempotent(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 1000)
	donation := testDonation(t, base, campaign.ID, 100)

	first, err := base.CompleteDonation(ctx, donation.ID)
	require.NoError(t, err)
	require.False(t, first.AlreadyCompleted)
	require.NotNil(t, first.Receipt)
	require.NotNil(t, first.Ledger)
	require.True(t, first.Ledger.CollectedAmount.Equal(decimal.NewFromInt(100)))

	// Duplicate webhook delivery: a no-op, not a second ledger apply.
	second, err := base.CompleteDonation(ctx, donation.ID)
	require.NoError(t, err)
	require.True(t, second.AlreadyCompleted)
	require.Nil(t, second.Ledger)
	require.Equal(t, first.Receipt.Number, second.Receipt.Number)

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, 1, stored.DonorCount)
}

func TestCompleteDonationConcurrent(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	donation := testDonation(t, base, campaign.ID, 100)

	const workers = 16
	applied := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := base.CompleteDonation(ctx, donation.ID)
			if err == nil {
				applied <- !res.AlreadyCompleted
			}
		}()
	}
	wg.Wait()
	close(applied)

	firsts := 0
	for wasFirst := range applied {
		if wasFirst {
			firsts++
		}
	}
	require.Equal(t, 1, firsts, "exactly one caller should win the completion")

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.Equal(decimal.NewFromInt(100)))
}

func TestFailDonationTerminal(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 1000)
	donation := testDonation(t, base, campaign.ID, 100)

	require.NoError(t, base.FailDonation(ctx, donation.ID, "card declined"))

	// Terminal states reject further transitions.
	_, err := base.CompleteDonation(ctx, donation.ID)
	require.ErrorIs(t, err, fundnova.ErrInvalidTransition)
	require.ErrorIs(t, base.FailDonation(ctx, donation.ID, "again"), fundnova.ErrInvalidTransition)
}

func TestCampaignAutoCompleteExactlyOnce(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 250)

	var donations []*fundnova.Donation
	for i := 0; i < 3; i++ {
		donations = append(donations, testDonation(t, base, campaign.ID, 100))
	}

	autoCompleted := 0
	for _, d := range donations {
		res, err := base.CompleteDonation(ctx, d.ID)
		require.NoError(t, err)
		if res.Ledger.AutoCompleted {
			autoCompleted++
		}
	}
	require.Equal(t, 1, autoCompleted, "target crossing should complete the campaign exactly once")

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.Equal(t, fundnova.CampaignCompleted, stored.Status)
	require.True(t, stored.CollectedAmount.Equal(decimal.NewFromInt(300)), "donations in flight at crossing still count")

	events := drainEvents(base)
	require.True(t, hasEventKind(events, fundnova.EventCampaignCompleted))
}

func TestReceiptSequenceGapless(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)

	year := time.Now().Year()
	for i := 1; i <= 5; i++ {
		donation := testDonation(t, base, campaign.ID, 50)
		res, err := base.CompleteDonation(ctx, donation.ID)
		require.NoError(t, err)
		require.Equal(t, i, res.Receipt.Sequence)
		require.Equal(t, fundnova.FormatReceiptNumber(year, i), res.Receipt.Number)
	}
}

func TestRequestRefundWindow(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	donorID := 7

	donation := &fundnova.Donation{
		CampaignID: &campaign.ID,
		DonorID:    &donorID,
		Amount:     decimal.NewFromInt(100),
		Rail:       fundnova.RailCard,
	}
	require.NoError(t, base.CreateDonation(ctx, donation))
	_, err := base.CompleteDonation(ctx, donation.ID)
	require.NoError(t, err)

	otherDonor := 8
	err = base.RequestRefund(ctx, donation.ID, "changed my mind", &otherDonor, false)
	require.Equal(t, 403, fundnova.ErrorCode(err))

	// Age the donation past the window.
	store.mu.Lock()
	store.donations[donation.ID].CreatedAt = time.Now().Add(-15 * 24 * time.Hour)
	store.mu.Unlock()
	err = base.RequestRefund(ctx, donation.ID, "too late", &donorID, false)
	require.Equal(t, 400, fundnova.ErrorCode(err))

	// Admins bypass the window.
	require.NoError(t, base.RequestRefund(ctx, donation.ID, "support escalation", nil, true))
	require.ErrorIs(t, base.RequestRefund(ctx, donation.ID, "twice", nil, true), fundnova.ErrInvalidTransition)
}

func TestProcessRefundReversesLedger(t *testing.T) {
	base, store, fake := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	donorID := 7

	donation := &fundnova.Donation{
		CampaignID: &campaign.ID,
		DonorID:    &donorID,
		Amount:     decimal.NewFromInt(100),
		Rail:       fundnova.RailCard,
	}
	require.NoError(t, base.CreateDonation(ctx, donation))
	_, err := base.CompleteDonation(ctx, donation.ID)
	require.NoError(t, err)

	providerID := "fake_tx_000001"
	require.NoError(t, store.UpdateDonation(ctx, donation.ID, fundnova.DonationUpdate{ProviderTransactionID: &providerID}))

	require.NoError(t, base.RequestRefund(ctx, donation.ID, "duplicate payment", &donorID, false))

	refunded, err := base.ProcessRefund(ctx, donation.ID)
	require.NoError(t, err)
	require.Equal(t, fundnova.DonationRefunded, refunded.Status)
	require.Equal(t, fundnova.RefundProcessed, refunded.RefundStatus)
	require.Len(t, fake.Refunds(), 1)

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.IsZero(), "refund should reverse the ledger apply")
	require.Equal(t, 0, stored.DonorCount)

	derived, err := store.SumCompletedDonations(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.Equal(derived), "ledger stays reconcilable after refund")

	_, err = base.ProcessRefund(ctx, donation.ID)
	require.ErrorIs(t, err, fundnova.ErrInvalidTransition)
}

func TestVerifyCampaignLedger(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)

	for i := 0; i < 3; i++ {
		donation := testDonation(t, base, campaign.ID, 50)
		_, err := base.CompleteDonation(ctx, donation.ID)
		require.NoError(t, err)
	}

	check, err := base.VerifyCampaignLedger(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, check.Consistent)
	require.True(t, check.CollectedAmount.Equal(decimal.NewFromInt(150)))
}
