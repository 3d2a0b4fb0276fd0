package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/gateway"
	"github.com/FundProjects/fundnova/sudoapi/flags"
	"github.com/shopspring/decimal"
)

func (s *BaseAPI) Donation(ctx context.Context, id int) (*fundnova.Donation, error) {
	donation, err := s.db.Donation(ctx, id)
	if err != nil {
		return nil, err
	}
	return donation, nil
}

func (s *BaseAPI) Donations(ctx context.Context, filter fundnova.DonationFilter) ([]*fundnova.Donation, error) {
	donations, err := s.db.Donations(ctx, filter)
	if err != nil {
		return nil, WrapError(err, "Couldn't get donations")
	}
	return donations, nil
}

func (s *BaseAPI) CountDonations(ctx context.Context, filter fundnova.DonationFilter) (int, error) {
	cnt, err := s.db.CountDonations(ctx, filter)
	if err != nil {
		return -1, WrapError(err, "Couldn't count donations")
	}
	return cnt, nil
}

// CreateDonation validates intake and records a pending donation. Nothing has
// been charged yet when this returns; the state machine moves on gateway
// results only.
func (s *BaseAPI) CreateDonation(ctx context.Context, donation *fundnova.Donation) error {
	if !fundnova.ValidAmount(donation.Amount) {
		return Statusf(400, "Donation amount must be positive")
	}
	if min := decimal.NewFromFloat(flags.MinDonationAmount.Value()); donation.Amount.LessThan(min) {
		return Statusf(400, "Donation amount must be at least %s", min.StringFixed(2))
	}
	if donation.CampaignID != nil {
		campaign, err := s.Campaign(ctx, *donation.CampaignID)
		if err != nil {
			return err
		}
		if !campaign.AcceptsDonations() {
			return Statusf(400, "Campaign is not accepting donations")
		}
		donation.OrganizationID = campaign.OrganizationID
	}
	if donation.OrganizationID <= 0 {
		return Statusf(400, "Donation must target a campaign or an organization")
	}
	if donation.Currency == "" {
		donation.Currency = fundnova.DefaultCurrency
	}

	if err := s.db.CreateDonation(ctx, donation); err != nil {
		return WrapError(err, "Couldn't create donation")
	}

	ev := fundnova.NewEvent(fundnova.EventDonationCreated,
		fmt.Sprintf("Donation #%d created (%s %s, %s)", donation.ID, donation.Amount.StringFixed(2), donation.Currency, donation.Rail))
	ev.DonationID = donation.ID
	ev.CampaignID = donation.CampaignID
	ev.DonorID = donation.DonorID
	s.emitEvent(ctx, ev)
	return nil
}

// CompleteDonation drives the pending -> completed transition. Ledger apply
// and receipt issuance happen atomically in the store; this layer adds the
// post-commit side effects, and adds none of them on a duplicate call.
func (s *BaseAPI) CompleteDonation(ctx context.Context, id int) (*fundnova.CompletionResult, error) {
	res, err := s.db.CompleteDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.AlreadyCompleted {
		return res, nil
	}

	donationsCompleted.WithLabelValues(string(res.Donation.Rail)).Inc()
	receiptsIssued.Inc()
	s.handleLedgerResult(ctx, orZero(res.Donation.CampaignID), res.Ledger)

	ev := fundnova.NewEvent(fundnova.EventDonationCompleted,
		fmt.Sprintf("Donation #%d completed (%s %s), receipt %s", id, res.Donation.Amount.StringFixed(2), res.Donation.Currency, res.Receipt.Number))
	ev.DonationID = id
	ev.CampaignID = res.Donation.CampaignID
	ev.DonorID = res.Donation.DonorID
	s.emitEvent(ctx, ev)

	return res, nil
}

func (s *BaseAPI) FailDonation(ctx context.Context, id int, reason string) error {
	if err := s.db.FailDonation(ctx, id, reason); err != nil {
		return err
	}
	donationsFailed.Inc()

	ev := fundnova.NewEvent(fundnova.EventDonationFailed, fmt.Sprintf("Donation #%d failed: %s", id, reason))
	ev.DonationID = id
	s.emitEvent(ctx, ev)
	return nil
}

// RequestRefund checks ownership and the refund window before flipping the
// refund marker. Admins bypass both.
func (s *BaseAPI) RequestRefund(ctx context.Context, id int, reason string, requesterID *int, admin bool) error {
	donation, err := s.db.Donation(ctx, id)
	if err != nil {
		return err
	}
	if !admin {
		if requesterID == nil || donation.DonorID == nil || *donation.DonorID != *requesterID {
			return Statusf(403, "You can only request refunds for your own donations")
		}
		window := time.Duration(flags.RefundWindowDays.Value()) * 24 * time.Hour
		if !donation.InRefundWindow(time.Now(), window) {
			return Statusf(400, "Refund window of %d days has passed", flags.RefundWindowDays.Value())
		}
	}

	if err := s.db.RequestRefund(ctx, id, reason); err != nil {
		return err
	}

	ev := fundnova.NewEvent(fundnova.EventRefundRequested, fmt.Sprintf("Refund requested for donation #%d: %s", id, reason))
	ev.DonationID = id
	ev.CampaignID = donation.CampaignID
	ev.DonorID = donation.DonorID
	s.emitEvent(ctx, ev)
	return nil
}

// ProcessRefund is the admin operation that actually returns the money: it
// asks the gateway to reverse the charge, records the exchange and finalizes
// the state flip together with the campaign ledger reversal.
func (s *BaseAPI) ProcessRefund(ctx context.Context, id int) (*fundnova.Donation, error) {
	donation, err := s.db.Donation(ctx, id)
	if err != nil {
		return nil, err
	}
	if donation.Status != fundnova.DonationCompleted || donation.RefundStatus != fundnova.RefundRequested {
		return nil, ErrInvalidTransition
	}

	if donation.ProviderTransactionID != nil {
		res, err := s.gateway.Refund(ctx, gateway.RefundRequest{
			ProviderTransactionID: *donation.ProviderTransactionID,
			Amount:                donation.Amount,
			Reason:                donation.RefundReason,
		})
		if err != nil {
			var gerr *gateway.Error
			if errors.As(err, &gerr) {
				return nil, Statusf(502, "Gateway refund failed: %s", gerr.Message)
			}
			return nil, WrapError(err, "Gateway refund failed")
		}
		if _, err := s.RecordAttempt(ctx, id, res); err != nil {
			return nil, err
		}
	}

	refunded, err := s.db.ProcessRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	refundsProcessed.Inc()
	if refunded.CampaignID != nil {
		s.campaignCache.Delete(*refunded.CampaignID)
	}

	ev := fundnova.NewEvent(fundnova.EventRefundProcessed,
		fmt.Sprintf("Refund processed for donation #%d (%s %s)", id, refunded.Amount.StringFixed(2), refunded.Currency))
	ev.DonationID = id
	ev.CampaignID = refunded.CampaignID
	ev.DonorID = refunded.DonorID
	s.emitEvent(ctx, ev)

	return refunded, nil
}

func orZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
