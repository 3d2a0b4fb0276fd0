package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/sudoapi/flags"
	"github.com/shopspring/decimal"
)

// InitiateTransfer reserves a reference code for an informal bank transfer.
// The destination account is snapshotted onto the reference; code generation
// retries on collision since uniqueness only comes from the database.
func (s *BaseAPI) InitiateTransfer(ctx context.Context, ref *fundnova.BankTransferReference) error {
	if !fundnova.ValidAmount(ref.ExpectedAmount) {
		return Statusf(400, "Expected amount must be positive")
	}
	if ref.SenderName == "" {
		return Statusf(400, "Sender name must not be empty")
	}
	if ref.CampaignID != nil {
		campaign, err := s.Campaign(ctx, *ref.CampaignID)
		if err != nil {
			return err
		}
		if !campaign.AcceptsDonations() {
			return Statusf(400, "Campaign is not accepting donations")
		}
		ref.OrganizationID = campaign.OrganizationID
	}
	if ref.OrganizationID <= 0 {
		return Statusf(400, "Transfer must target a campaign or an organization")
	}
	if ref.Currency == "" {
		ref.Currency = fundnova.DefaultCurrency
	}

	account, err := s.db.PrimaryBankAccount(ctx, ref.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Statusf(400, "Organization has no bank account configured")
		}
		return err
	}
	ref.BankName = account.BankName
	ref.IBAN = account.IBAN
	ref.AccountHolder = account.AccountHolder

	now := time.Now()
	ref.Status = fundnova.TransferPending
	ref.ExpiresAt = now.Add(time.Duration(flags.TransferExpiryDays.Value()) * 24 * time.Hour)

	for i := 0; i < 5; i++ {
		ref.Code = fundnova.NewReferenceCode(now)
		err := s.db.CreateBankReference(ctx, ref)
		if errors.Is(err, fundnova.ErrReferenceCollision) {
			continue
		} else if err != nil {
			return WrapError(err, "Couldn't create transfer reference")
		}
		return nil
	}
	return Statusf(500, "Couldn't generate a unique reference code")
}

func (s *BaseAPI) BankReference(ctx context.Context, code string) (*fundnova.BankTransferReference, error) {
	if !fundnova.ValidReferenceCode(code) {
		return nil, Statusf(400, "Invalid reference code format")
	}
	ref, err := s.db.BankReference(ctx, code)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// MatchTransfer reconciles an incoming statement line against a pending
// reference. Any positive amount matches; a large deviation from the expected
// amount does not block the match but is flagged for manual review.
func (s *BaseAPI) MatchTransfer(ctx context.Context, code string, actual decimal.Decimal) (*fundnova.MatchResult, error) {
	if !fundnova.ValidReferenceCode(code) {
		return nil, Statusf(400, "Invalid reference code format")
	}
	if !fundnova.ValidAmount(actual) {
		return nil, Statusf(400, "Transferred amount must be positive")
	}

	ref, err := s.db.BankReference(ctx, code)
	if err != nil {
		return nil, err
	}

	var discrepancy *decimal.Decimal
	flagged := fundnova.ExceedsTolerance(ref.ExpectedAmount, actual, int64(flags.TransferTolerancePct.Value()))
	if flagged {
		d := fundnova.AmountDiscrepancy(ref.ExpectedAmount, actual)
		discrepancy = &d
	}

	res, err := s.db.MatchBankReference(ctx, code, actual, discrepancy)
	if err != nil {
		return nil, err
	}

	transfersMatched.Inc()
	donationsCompleted.WithLabelValues(string(fundnova.RailBankTransfer)).Inc()
	receiptsIssued.Inc()
	s.handleLedgerResult(ctx, orZero(res.Donation.CampaignID), res.Ledger)

	ev := fundnova.NewEvent(fundnova.EventTransferMatched,
		fmt.Sprintf("Transfer %s matched to donation #%d (%s %s)", code, res.Donation.ID, actual.StringFixed(2), res.Donation.Currency))
	ev.DonationID = res.Donation.ID
	ev.CampaignID = res.Donation.CampaignID
	ev.DonorID = res.Donation.DonorID
	s.emitEvent(ctx, ev)

	if flagged {
		dev := fundnova.NewEvent(fundnova.EventTransferDiscrepancy,
			fmt.Sprintf("Transfer %s matched with discrepancy: expected %s, received %s", code, ref.ExpectedAmount.StringFixed(2), actual.StringFixed(2)))
		dev.DonationID = res.Donation.ID
		dev.CampaignID = res.Donation.CampaignID
		s.emitEvent(ctx, dev)
	}

	return res, nil
}

// CancelTransfer voids a still-pending reference. Donors may only cancel
// their own.
func (s *BaseAPI) CancelTransfer(ctx context.Context, code string, requesterID *int, admin bool) error {
	ref, err := s.BankReference(ctx, code)
	if err != nil {
		return err
	}
	if !admin {
		if requesterID == nil || ref.DonorID == nil || *ref.DonorID != *requesterID {
			return Statusf(403, "You can only cancel your own transfer references")
		}
	}
	return s.db.CancelBankReference(ctx, code)
}

func (s *BaseAPI) ExpireStaleReferences(ctx context.Context) (int, error) {
	cnt, err := s.db.ExpireStaleReferences(ctx, time.Now())
	if err != nil {
		return 0, WrapError(err, "Couldn't expire transfer references")
	}
	transfersExpired.Add(float64(cnt))
	return cnt, nil
}

func (s *BaseAPI) CreateBankAccount(ctx context.Context, acc *fundnova.BankAccount) error {
	if acc.IBAN == "" || acc.BankName == "" || acc.AccountHolder == "" {
		return ErrMissingRequired
	}
	if err := s.db.CreateBankAccount(ctx, acc); err != nil {
		return WrapError(err, "Couldn't create bank account")
	}
	return nil
}
