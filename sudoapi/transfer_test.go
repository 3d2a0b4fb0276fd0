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

func testBankAccount(t *testing.T, base *BaseAPI, orgID int) *fundnova.BankAccount {
	t.Helper()
	acc := &fundnova.BankAccount{
		OrganizationID: orgID,
		BankName:       "Banca Exemplu",
		IBAN:           "RO49AAAA1B31007593840000",
		AccountHolder:  "Asociatia Exemplu",
		Primary:        true,
	}
	require.NoError(t, base.CreateBankAccount(context.Background(), acc))
	return acc
}

func testReference(t *testing.T, base *BaseAPI, campaignID int, expected int64) *fundnova.BankTransferReference {
	t.Helper()
	ref := &fundnova.BankTransferReference{
		CampaignID:     &campaignID,
		ExpectedAmount: decimal.NewFromInt(expected),
		SenderName:     "Ion Popescu",
	}
	require.NoError(t, base.InitiateTransfer(context.Background(), ref))
	return ref
}

func TestInitiateTransfer(t *testing.T) {
	base, _, _ := newTestAPI(t)
	campaign := testCampaign(t, base, 100000)
	account := testBankAccount(t, base, campaign.OrganizationID)

	ref := testReference(t, base, campaign.ID, 500)
	require.True(t, fundnova.ValidReferenceCode(ref.Code))
	require.Equal(t, fundnova.TransferPending, ref.Status)
	require.Equal(t, account.IBAN, ref.IBAN)
	require.Equal(t, account.BankName, ref.BankName)
	require.True(t, ref.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))
}

func TestInitiateTransferNoAccount(t *testing.T) {
	base, _, _ := newTestAPI(t)
	campaign := testCampaign(t, base, 100000)

	ref := &fundnova.BankTransferReference{
		CampaignID:     &campaign.ID,
		ExpectedAmount: decimal.NewFromInt(500),
		SenderName:     "Ion Popescu",
	}
	err := base.InitiateTransfer(context.Background(), ref)
	require.Equal(t, 400, fundnova.ErrorCode(err))
}

func TestMatchTransfer(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	// The donor sent slightly less than announced; the match still goes
	// through with the actual amount.
	res, err := base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(480))
	require.NoError(t, err)
	require.Equal(t, fundnova.TransferMatched, res.Reference.Status)
	require.Equal(t, fundnova.DonationCompleted, res.Donation.Status)
	require.Equal(t, fundnova.RailBankTransfer, res.Donation.Rail)
	require.True(t, res.Donation.Amount.Equal(decimal.NewFromInt(480)))
	require.NotNil(t, res.Receipt)
	require.Nil(t, res.Reference.Discrepancy, "a 4% shortfall is within tolerance")

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.Equal(decimal.NewFromInt(480)), "ledger credits the actual amount")

	events := drainEvents(base)
	require.True(t, hasEventKind(events, fundnova.EventTransferMatched))
	require.False(t, hasEventKind(events, fundnova.EventTransferDiscrepancy))
}

func TestMatchTransferDiscrepancyFlagged(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	res, err := base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(300))
	require.NoError(t, err, "a large deviation still matches")
	require.NotNil(t, res.Reference.Discrepancy)
	require.True(t, res.Reference.Discrepancy.Equal(decimal.NewFromInt(200)))

	events := drainEvents(base)
	require.True(t, hasEventKind(events, fundnova.EventTransferDiscrepancy))
}

func TestMatchTransferValidation(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	_, err := base.MatchTransfer(ctx, "not-a-code", decimal.NewFromInt(100))
	require.Equal(t, 400, fundnova.ErrorCode(err))

	_, err = base.MatchTransfer(ctx, ref.Code, decimal.Zero)
	require.Equal(t, 400, fundnova.ErrorCode(err))

	_, err = base.MatchTransfer(ctx, "SBP-20260101-AAAAA", decimal.NewFromInt(100))
	require.ErrorIs(t, err, fundnova.ErrNotFound)
}

func TestMatchTransferConcurrent(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	const workers = 8
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(500)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins, "exactly one import should win the match")

	stored, err := store.Campaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, stored.CollectedAmount.Equal(decimal.NewFromInt(500)))
}

func TestMatchAfterExpiry(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	store.mu.Lock()
	store.references[ref.Code].ExpiresAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	cnt, err := base.ExpireStaleReferences(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cnt)

	_, err = base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(500))
	require.ErrorIs(t, err, fundnova.ErrInvalidTransition)
}

func TestExpirySkipsMatched(t *testing.T) {
	base, store, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)
	ref := testReference(t, base, campaign.ID, 500)

	_, err := base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(500))
	require.NoError(t, err)

	// An expiry sweep arriving late must not touch the matched reference.
	store.mu.Lock()
	store.references[ref.Code].ExpiresAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()
	cnt, err := base.ExpireStaleReferences(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, cnt)

	stored, err := base.BankReference(ctx, ref.Code)
	require.NoError(t, err)
	require.Equal(t, fundnova.TransferMatched, stored.Status)
}

func TestCancelTransferOwnership(t *testing.T) {
	base, _, _ := newTestAPI(t)
	ctx := context.Background()
	campaign := testCampaign(t, base, 100000)
	testBankAccount(t, base, campaign.OrganizationID)

	donorID := 4
	ref := &fundnova.BankTransferReference{
		CampaignID:     &campaign.ID,
		DonorID:        &donorID,
		ExpectedAmount: decimal.NewFromInt(500),
		SenderName:     "Ion Popescu",
	}
	require.NoError(t, base.InitiateTransfer(ctx, ref))

	otherDonor := 5
	err := base.CancelTransfer(ctx, ref.Code, &otherDonor, false)
	require.Equal(t, 403, fundnova.ErrorCode(err))

	require.NoError(t, base.CancelTransfer(ctx, ref.Code, &donorID, false))

	_, err = base.MatchTransfer(ctx, ref.Code, decimal.NewFromInt(500))
	require.ErrorIs(t, err, fundnova.ErrInvalidTransition)
}
