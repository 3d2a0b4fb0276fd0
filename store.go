package fundnova

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ErrReferenceCollision is returned by the store when a freshly generated
// reference code already exists; callers regenerate and retry.
var ErrReferenceCollision = Statusf(409, "Reference code already exists")

// CompletionResult reports what a single atomic donation completion did.
// The status flip, the campaign ledger apply and the receipt allocation all
// happen in one storage transaction, so a crash can neither double-apply the
// ledger nor complete a donation without a receipt.
type CompletionResult struct {
	Donation *Donation
	Receipt  *Receipt

	// AlreadyCompleted is set when the donation had been completed before
	// this call; the call is then a no-op (duplicate webhook protection).
	AlreadyCompleted bool

	// Ledger is nil for donations without a campaign (organization-level
	// recurring or transfer donations).
	Ledger *LedgerResult
}

// MatchResult reports an atomic bank-transfer match: the reference flip, the
// completed donation it produced, and the ledger/receipt effects.
type MatchResult struct {
	Reference *BankTransferReference
	Donation  *Donation
	Receipt   *Receipt
	Ledger    *LedgerResult
}

// DB is the persistence contract of the payments core. All conditional
// operations are single atomic statements (or single transactions) at the
// storage layer; callers never read-then-write the hot fields.
type DB interface {
	// Campaigns
	Campaign(ctx context.Context, id int) (*Campaign, error)
	CampaignBySlug(ctx context.Context, slug string) (*Campaign, error)
	CreateCampaign(ctx context.Context, c *Campaign) error
	// SumCompletedDonations re-derives the ledger total for reconciliation
	// checks. Never used on the hot path.
	SumCompletedDonations(ctx context.Context, campaignID int) (decimal.Decimal, error)

	// Donations
	Donation(ctx context.Context, id int) (*Donation, error)
	Donations(ctx context.Context, filter DonationFilter) ([]*Donation, error)
	CountDonations(ctx context.Context, filter DonationFilter) (int, error)
	CreateDonation(ctx context.Context, d *Donation) error
	UpdateDonation(ctx context.Context, id int, upd DonationUpdate) error

	// Donation state machine primitives
	CompleteDonation(ctx context.Context, id int) (*CompletionResult, error)
	FailDonation(ctx context.Context, id int, reason string) error
	RequestRefund(ctx context.Context, id int, reason string) error
	// ProcessRefund flips a refund-requested donation to refunded and
	// reverses its campaign ledger apply in the same transaction, keeping
	// the reconciliation invariant intact.
	ProcessRefund(ctx context.Context, id int) (*Donation, error)

	// Transactions
	Transactions(ctx context.Context, donationID int) ([]*Transaction, error)
	TransactionByProviderID(ctx context.Context, provider, providerTransactionID string) (*Transaction, error)
	// RecordTransaction upserts on the provider transaction id and reports
	// whether this call was the first completed observation.
	RecordTransaction(ctx context.Context, t *Transaction) (first bool, err error)

	// Bank transfers
	PrimaryBankAccount(ctx context.Context, organizationID int) (*BankAccount, error)
	CreateBankAccount(ctx context.Context, acc *BankAccount) error
	BankReference(ctx context.Context, code string) (*BankTransferReference, error)
	CreateBankReference(ctx context.Context, ref *BankTransferReference) error
	MatchBankReference(ctx context.Context, code string, actual decimal.Decimal, discrepancy *decimal.Decimal) (*MatchResult, error)
	CancelBankReference(ctx context.Context, code string) error
	ExpireStaleReferences(ctx context.Context, now time.Time) (int, error)

	// Recurring donations
	RecurringDonation(ctx context.Context, id int) (*RecurringDonation, error)
	CreateRecurringDonation(ctx context.Context, sub *RecurringDonation) error
	UpdateRecurringDonation(ctx context.Context, id int, upd RecurringUpdate) error
	DueSubscriptions(ctx context.Context, asOf time.Time) ([]*RecurringDonation, error)

	// Receipts
	Receipt(ctx context.Context, donationID int) (*Receipt, error)

	// Audit trail
	CreateAuditLog(ctx context.Context, msg string, authorID *int, system bool) (int, error)
	AuditLogs(ctx context.Context, limit, offset int) ([]*AuditLog, error)

	Close() error
}
