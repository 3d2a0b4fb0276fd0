package sudoapi

import (
	"context"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/gateway"
)

func (s *BaseAPI) Transactions(ctx context.Context, donationID int) ([]*fundnova.Transaction, error) {
	txns, err := s.db.Transactions(ctx, donationID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get transactions")
	}
	return txns, nil
}

// RecordAttempt persists one normalized gateway exchange against a donation.
// The store dedupes on the provider transaction id, so replayed webhooks and
// synchronous results for the same charge collapse into a single completed
// observation; the return value says whether this call was the first one.
func (s *BaseAPI) RecordAttempt(ctx context.Context, donationID int, res *gateway.Result) (bool, error) {
	donation, err := s.db.Donation(ctx, donationID)
	if err != nil {
		return false, err
	}

	txn := &fundnova.Transaction{
		DonationID: donationID,

		Provider: res.Provider,

		Amount:    donation.Amount,
		Fee:       res.Fee,
		NetAmount: donation.Amount.Sub(res.Fee),

		ErrorCode:    res.DeclineCode,
		ErrorMessage: res.DeclineMessage,

		RawResponse: res.Raw,

		ProcessedAt: time.Now(),
	}
	if res.ProviderTransactionID != "" {
		txn.ProviderTransactionID = &res.ProviderTransactionID
	}
	switch res.Outcome {
	case gateway.OutcomeApproved:
		txn.Status = fundnova.TransactionCompleted
	case gateway.OutcomeDeclined:
		txn.Status = fundnova.TransactionFailed
	default:
		txn.Status = fundnova.TransactionPending
	}

	first, err := s.db.RecordTransaction(ctx, txn)
	if err != nil {
		return false, WrapError(err, "Couldn't record transaction")
	}

	if first && txn.ProviderTransactionID != nil && donation.ProviderTransactionID == nil {
		if err := s.db.UpdateDonation(ctx, donationID, fundnova.DonationUpdate{ProviderTransactionID: txn.ProviderTransactionID}); err != nil {
			return false, WrapError(err, "Couldn't link provider transaction to donation")
		}
	}

	return first, nil
}

// DonationByProviderTransaction resolves the donation an inbound webhook
// refers to, through the recorded transaction for that provider id.
func (s *BaseAPI) DonationByProviderTransaction(ctx context.Context, provider, providerTransactionID string) (*fundnova.Donation, error) {
	txn, err := s.db.TransactionByProviderID(ctx, provider, providerTransactionID)
	if err != nil {
		return nil, err
	}
	return s.db.Donation(ctx, txn.DonationID)
}
