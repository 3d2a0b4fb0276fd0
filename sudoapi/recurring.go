package sudoapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/gateway"
	"github.com/FundProjects/fundnova/sudoapi/flags"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func (s *BaseAPI) Subscription(ctx context.Context, id int) (*fundnova.RecurringDonation, error) {
	sub, err := s.db.RecurringDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateSubscription registers a standing donation instruction. The first
// charge happens on the first billing sweep after one interval has passed.
func (s *BaseAPI) CreateSubscription(ctx context.Context, sub *fundnova.RecurringDonation) error {
	if (sub.CampaignID == nil) == (sub.OrganizationID == nil) {
		return Statusf(400, "Subscription must target exactly one of campaign or organization")
	}
	if !fundnova.ValidAmount(sub.Amount) {
		return Statusf(400, "Subscription amount must be positive")
	}
	if !fundnova.ValidFrequency(sub.Frequency) {
		return Statusf(400, "Invalid frequency %q", sub.Frequency)
	}
	if sub.CardToken == "" {
		return Statusf(400, "Missing card token")
	}
	if sub.CampaignID != nil {
		campaign, err := s.Campaign(ctx, *sub.CampaignID)
		if err != nil {
			return err
		}
		if !campaign.AcceptsDonations() {
			return Statusf(400, "Campaign is not accepting donations")
		}
	}
	if sub.Currency == "" {
		sub.Currency = fundnova.DefaultCurrency
	}
	sub.Status = fundnova.SubscriptionActive
	sub.NextPaymentDate = fundnova.NextPaymentDate(sub.Frequency, time.Now())

	if err := s.db.CreateRecurringDonation(ctx, sub); err != nil {
		return WrapError(err, "Couldn't create subscription")
	}
	return nil
}

func (s *BaseAPI) PauseSubscription(ctx context.Context, id int, requesterID *int, admin bool) error {
	sub, err := s.subscriptionForUpdate(ctx, id, requesterID, admin)
	if err != nil {
		return err
	}
	if sub.Status != fundnova.SubscriptionActive {
		return ErrInvalidTransition
	}
	paused := fundnova.SubscriptionPaused
	return s.db.UpdateRecurringDonation(ctx, id, fundnova.RecurringUpdate{Status: &paused})
}

// ResumeSubscription reactivates a paused subscription. The failure counter
// resets and the next payment is rescheduled one interval from now, so a
// subscription paused for months doesn't get billed for the gap.
func (s *BaseAPI) ResumeSubscription(ctx context.Context, id int, requesterID *int, admin bool) error {
	sub, err := s.subscriptionForUpdate(ctx, id, requesterID, admin)
	if err != nil {
		return err
	}
	if sub.Status != fundnova.SubscriptionPaused {
		return ErrInvalidTransition
	}
	active := fundnova.SubscriptionActive
	zero := 0
	next := fundnova.NextPaymentDate(sub.Frequency, time.Now())
	return s.db.UpdateRecurringDonation(ctx, id, fundnova.RecurringUpdate{
		Status:          &active,
		FailureCount:    &zero,
		NextPaymentDate: &next,
	})
}

func (s *BaseAPI) CancelSubscription(ctx context.Context, id int, requesterID *int, admin bool) error {
	sub, err := s.subscriptionForUpdate(ctx, id, requesterID, admin)
	if err != nil {
		return err
	}
	if sub.Status == fundnova.SubscriptionCancelled {
		return ErrInvalidTransition
	}
	cancelled := fundnova.SubscriptionCancelled
	return s.db.UpdateRecurringDonation(ctx, id, fundnova.RecurringUpdate{Status: &cancelled})
}

func (s *BaseAPI) subscriptionForUpdate(ctx context.Context, id int, requesterID *int, admin bool) (*fundnova.RecurringDonation, error) {
	sub, err := s.db.RecurringDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && (requesterID == nil || sub.DonorID != *requesterID) {
		return nil, Statusf(403, "You can only manage your own subscriptions")
	}
	return sub, nil
}

// BillingReport summarizes one billing sweep.
type BillingReport struct {
	Attempted int `json:"attempted"`
	Charged   int `json:"charged"`
	Failed    int `json:"failed"`
	Paused    int `json:"paused"`

	// Deferred counts charges with an unknown outcome (gateway unreachable);
	// they stay due and are retried on the next sweep.
	Deferred int `json:"deferred"`
}

// RunDueCharges charges every subscription whose next payment date has
// passed. Subscriptions are independent: one failing charge never aborts the
// sweep, and concurrency is capped by a runtime flag.
func (s *BaseAPI) RunDueCharges(ctx context.Context, asOf time.Time) (*BillingReport, error) {
	due, err := s.db.DueSubscriptions(ctx, asOf)
	if err != nil {
		return nil, WrapError(err, "Couldn't list due subscriptions")
	}

	var mu sync.Mutex
	report := &BillingReport{Attempted: len(due)}

	var g errgroup.Group
	g.SetLimit(max(1, flags.BillingConcurrency.Value()))
	for _, sub := range due {
		sub := sub
		g.Go(func() error {
			outcome := s.chargeSubscription(ctx, sub)
			mu.Lock()
			switch outcome {
			case chargeApproved:
				report.Charged++
			case chargeDeclined:
				report.Failed++
			case chargePaused:
				report.Failed++
				report.Paused++
			case chargeDeferred:
				report.Deferred++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return report, nil
}

type chargeOutcome int

const (
	chargeApproved chargeOutcome = iota
	chargeDeclined
	chargePaused
	chargeDeferred
)

// chargeSubscription runs one billing cycle for one subscription: create a
// pending donation, charge the stored card token, then drive the donation and
// the subscription schedule from the outcome. An unreachable gateway leaves
// the donation pending and the schedule untouched; only a definitive decline
// counts as a failure.
func (s *BaseAPI) chargeSubscription(ctx context.Context, sub *fundnova.RecurringDonation) chargeOutcome {
	donation := &fundnova.Donation{
		CampaignID: sub.CampaignID,
		DonorID:    &sub.DonorID,
		Amount:     sub.Amount,
		Currency:   sub.Currency,
		Rail:       fundnova.RailRecurring,
	}
	if sub.OrganizationID != nil {
		donation.OrganizationID = *sub.OrganizationID
	} else if sub.CampaignID != nil {
		campaign, err := s.Campaign(ctx, *sub.CampaignID)
		if err != nil {
			slog.WarnContext(ctx, "Couldn't load subscription campaign", slog.Int("subscription", sub.ID), slog.Any("err", err))
			return chargeDeferred
		}
		if !campaign.AcceptsDonations() {
			// Completed/cancelled campaign: stop billing without counting it
			// against the donor's card.
			s.pauseForFailures(ctx, sub, sub.FailureCount, "campaign no longer accepts donations")
			return chargePaused
		}
		donation.OrganizationID = campaign.OrganizationID
	}

	if err := s.db.CreateDonation(ctx, donation); err != nil {
		slog.WarnContext(ctx, "Couldn't create billing donation", slog.Int("subscription", sub.ID), slog.Any("err", err))
		return chargeDeferred
	}

	chargeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res, err := s.gateway.Charge(chargeCtx, gateway.ChargeRequest{
		CardToken:      sub.CardToken,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		if gateway.IsRetryable(err) {
			// Outcome unknown: the donation stays pending until a webhook or
			// the next sweep settles it.
			billingCharges.WithLabelValues("unknown").Inc()
			slog.WarnContext(ctx, "Gateway unreachable during billing", slog.Int("subscription", sub.ID), slog.Any("err", err))
			return chargeDeferred
		}
		billingCharges.WithLabelValues("error").Inc()
		if ferr := s.FailDonation(ctx, donation.ID, err.Error()); ferr != nil {
			slog.WarnContext(ctx, "Couldn't fail billing donation", slog.Any("err", ferr))
		}
		return s.handlePaymentFailure(ctx, sub, err.Error())
	}

	if _, err := s.RecordAttempt(ctx, donation.ID, res); err != nil {
		slog.WarnContext(ctx, "Couldn't record billing transaction", slog.Int("donation", donation.ID), slog.Any("err", err))
	}

	switch res.Outcome {
	case gateway.OutcomeApproved:
		if _, err := s.CompleteDonation(ctx, donation.ID); err != nil {
			slog.WarnContext(ctx, "Couldn't complete billing donation", slog.Int("donation", donation.ID), slog.Any("err", err))
			return chargeDeferred
		}
		billingCharges.WithLabelValues("approved").Inc()
		s.handlePaymentSuccess(ctx, sub)
		return chargeApproved
	case gateway.OutcomeDeclined:
		billingCharges.WithLabelValues("declined").Inc()
		reason := res.DeclineMessage
		if reason == "" {
			reason = res.DeclineCode
		}
		if err := s.FailDonation(ctx, donation.ID, reason); err != nil {
			slog.WarnContext(ctx, "Couldn't fail billing donation", slog.Any("err", err))
		}
		return s.handlePaymentFailure(ctx, sub, reason)
	default:
		billingCharges.WithLabelValues("unknown").Inc()
		return chargeDeferred
	}
}

// handlePaymentSuccess advances the schedule from today, not from the
// previously due date, so a subscription that was due while billing was down
// doesn't get charged twice in quick succession to catch up.
func (s *BaseAPI) handlePaymentSuccess(ctx context.Context, sub *fundnova.RecurringDonation) {
	now := time.Now()
	next := fundnova.NextPaymentDate(sub.Frequency, now)
	total := sub.TotalDonated.Add(sub.Amount)
	count := sub.PaymentCount + 1
	zero := 0
	empty := ""
	if err := s.db.UpdateRecurringDonation(ctx, sub.ID, fundnova.RecurringUpdate{
		NextPaymentDate: &next,
		LastPaymentDate: &now,
		TotalDonated:    &total,
		PaymentCount:    &count,
		FailureCount:    &zero,
		LastError:       &empty,
	}); err != nil {
		slog.WarnContext(ctx, "Couldn't advance subscription schedule", slog.Int("subscription", sub.ID), slog.Any("err", err))
	}
}

func (s *BaseAPI) handlePaymentFailure(ctx context.Context, sub *fundnova.RecurringDonation, reason string) chargeOutcome {
	failures := sub.FailureCount + 1
	if failures >= flags.MaxBillingFailures.Value() {
		s.pauseForFailures(ctx, sub, failures, reason)
		return chargePaused
	}

	// Still under the threshold: the schedule is left untouched, so the
	// subscription stays due and the next sweep retries it.
	if err := s.db.UpdateRecurringDonation(ctx, sub.ID, fundnova.RecurringUpdate{
		FailureCount: &failures,
		LastError:    &reason,
	}); err != nil {
		slog.WarnContext(ctx, "Couldn't record billing failure", slog.Int("subscription", sub.ID), slog.Any("err", err))
	}
	return chargeDeclined
}

func (s *BaseAPI) pauseForFailures(ctx context.Context, sub *fundnova.RecurringDonation, failures int, reason string) {
	paused := fundnova.SubscriptionPaused
	if err := s.db.UpdateRecurringDonation(ctx, sub.ID, fundnova.RecurringUpdate{
		Status:       &paused,
		FailureCount: &failures,
		LastError:    &reason,
	}); err != nil {
		slog.WarnContext(ctx, "Couldn't pause subscription", slog.Int("subscription", sub.ID), slog.Any("err", err))
		return
	}

	ev := fundnova.NewEvent(fundnova.EventSubscriptionPaused,
		fmt.Sprintf("Subscription #%d paused after %d failed charges: %s", sub.ID, failures, reason))
	ev.DonorID = &sub.DonorID
	ev.CampaignID = sub.CampaignID
	s.emitEvent(ctx, ev)
}
