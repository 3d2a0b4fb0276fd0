package sudoapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory fundnova.DB with the same conditional-update
// semantics as the SQL implementation: status flips only happen when the
// precondition row state holds, under one lock, so the service-layer tests
// exercise the real race behavior.
type memStore struct {
	mu sync.Mutex

	campaigns   map[int]*fundnova.Campaign
	donations   map[int]*fundnova.Donation
	txns        []*fundnova.Transaction
	accounts    []*fundnova.BankAccount
	references  map[string]*fundnova.BankTransferReference
	subs        map[int]*fundnova.RecurringDonation
	receipts    map[int]*fundnova.Receipt
	counters    map[int]int
	logs        []*fundnova.AuditLog
	nextID      int
	nextRefID   int
	nextTxnID   int
	nextLogID   int
	nextSubID   int
	nextCampID  int
	nextAcctID  int
	nextReceipt int
}

var _ fundnova.DB = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[int]*fundnova.Campaign),
		donations:  make(map[int]*fundnova.Donation),
		references: make(map[string]*fundnova.BankTransferReference),
		subs:       make(map[int]*fundnova.RecurringDonation),
		receipts:   make(map[int]*fundnova.Receipt),
		counters:   make(map[int]int),
	}
}

func cloneDonation(d *fundnova.Donation) *fundnova.Donation {
	cp := *d
	return &cp
}

func cloneCampaign(c *fundnova.Campaign) *fundnova.Campaign {
	cp := *c
	return &cp
}

func cloneReference(r *fundnova.BankTransferReference) *fundnova.BankTransferReference {
	cp := *r
	return &cp
}

func cloneSub(s *fundnova.RecurringDonation) *fundnova.RecurringDonation {
	cp := *s
	return &cp
}

// Campaigns

func (m *memStore) Campaign(ctx context.Context, id int) (*fundnova.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (m *memStore) CampaignBySlug(ctx context.Context, slug string) (*fundnova.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.campaigns {
		if c.Slug == slug {
			return cloneCampaign(c), nil
		}
	}
	return nil, fundnova.ErrNotFound
}

func (m *memStore) CreateCampaign(ctx context.Context, c *fundnova.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Slug == "" {
		c.Slug = fundnova.CampaignSlug(c.Name)
	}
	m.nextCampID++
	c.ID = m.nextCampID
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (m *memStore) SumCompletedDonations(ctx context.Context, campaignID int) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, d := range m.donations {
		if d.CampaignID != nil && *d.CampaignID == campaignID && d.Status == fundnova.DonationCompleted {
			sum = sum.Add(d.Amount)
		}
	}
	return sum, nil
}

// applyLedgerLocked mirrors the SQL increment + conditional auto-complete.
func (m *memStore) applyLedgerLocked(campaignID int, amount decimal.Decimal) (*fundnova.LedgerResult, error) {
	c, ok := m.campaigns[campaignID]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	c.CollectedAmount = c.CollectedAmount.Add(amount)
	c.DonorCount++

	res := &fundnova.LedgerResult{CollectedAmount: c.CollectedAmount, DonorCount: c.DonorCount}
	if c.Status == fundnova.CampaignActive && c.CollectedAmount.GreaterThanOrEqual(c.TargetAmount) {
		now := time.Now()
		c.Status = fundnova.CampaignCompleted
		c.CompletedAt = &now
		res.AutoCompleted = true
	}
	return res, nil
}

// Donations

func (m *memStore) Donation(ctx context.Context, id int) (*fundnova.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	return cloneDonation(d), nil
}

func matchesFilter(d *fundnova.Donation, f fundnova.DonationFilter) bool {
	if f.ID != nil && d.ID != *f.ID {
		return false
	}
	if f.CampaignID != nil && (d.CampaignID == nil || *d.CampaignID != *f.CampaignID) {
		return false
	}
	if f.DonorID != nil && (d.DonorID == nil || *d.DonorID != *f.DonorID) {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Rail != nil && d.Rail != *f.Rail {
		return false
	}
	if f.ProviderTransactionID != nil && (d.ProviderTransactionID == nil || *d.ProviderTransactionID != *f.ProviderTransactionID) {
		return false
	}
	return true
}

func (m *memStore) Donations(ctx context.Context, filter fundnova.DonationFilter) ([]*fundnova.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fundnova.Donation
	for id := 1; id <= m.nextID; id++ {
		d, ok := m.donations[id]
		if ok && matchesFilter(d, filter) {
			out = append(out, cloneDonation(d))
		}
	}
	return out, nil
}

func (m *memStore) CountDonations(ctx context.Context, filter fundnova.DonationFilter) (int, error) {
	donations, _ := m.Donations(ctx, filter)
	return len(donations), nil
}

func (m *memStore) CreateDonation(ctx context.Context, d *fundnova.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Currency == "" {
		d.Currency = fundnova.DefaultCurrency
	}
	if d.Status == "" {
		d.Status = fundnova.DonationPending
	}
	if d.RefundStatus == "" {
		d.RefundStatus = fundnova.RefundNone
	}
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	m.donations[d.ID] = cloneDonation(d)
	return nil
}

func (m *memStore) UpdateDonation(ctx context.Context, id int, upd fundnova.DonationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return fundnova.ErrNotFound
	}
	if upd.ProviderTransactionID != nil {
		d.ProviderTransactionID = upd.ProviderTransactionID
	}
	if upd.RefundStatus != nil {
		d.RefundStatus = *upd.RefundStatus
	}
	if upd.RefundReason != nil {
		d.RefundReason = *upd.RefundReason
	}
	return nil
}

func (m *memStore) issueReceiptLocked(donationID int, at time.Time) *fundnova.Receipt {
	year := at.Year()
	m.counters[year]++
	seq := m.counters[year]
	m.nextReceipt++
	receipt := &fundnova.Receipt{
		ID:         m.nextReceipt,
		DonationID: donationID,
		Year:       year,
		Sequence:   seq,
		Number:     fundnova.FormatReceiptNumber(year, seq),
		IssuedAt:   at,
	}
	m.receipts[donationID] = receipt
	return receipt
}

func (m *memStore) CompleteDonation(ctx context.Context, id int) (*fundnova.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	if d.Status != fundnova.DonationPending {
		if d.Status == fundnova.DonationCompleted {
			return &fundnova.CompletionResult{
				Donation:         cloneDonation(d),
				Receipt:          m.receipts[id],
				AlreadyCompleted: true,
			}, nil
		}
		return nil, fundnova.ErrInvalidTransition
	}

	now := time.Now()
	d.Status = fundnova.DonationCompleted
	d.CompletedAt = &now

	var res fundnova.CompletionResult
	res.Donation = cloneDonation(d)
	if d.CampaignID != nil {
		ledger, err := m.applyLedgerLocked(*d.CampaignID, d.Amount)
		if err != nil {
			return nil, err
		}
		res.Ledger = ledger
	}
	res.Receipt = m.issueReceiptLocked(id, now)
	return &res, nil
}

func (m *memStore) FailDonation(ctx context.Context, id int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return fundnova.ErrNotFound
	}
	if d.Status != fundnova.DonationPending {
		return fundnova.ErrInvalidTransition
	}
	d.Status = fundnova.DonationFailed
	d.FailReason = reason
	return nil
}

func (m *memStore) RequestRefund(ctx context.Context, id int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return fundnova.ErrNotFound
	}
	if d.Status != fundnova.DonationCompleted || d.RefundStatus != fundnova.RefundNone {
		return fundnova.ErrInvalidTransition
	}
	d.RefundStatus = fundnova.RefundRequested
	d.RefundReason = reason
	return nil
}

func (m *memStore) ProcessRefund(ctx context.Context, id int) (*fundnova.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	if d.Status != fundnova.DonationCompleted || d.RefundStatus != fundnova.RefundRequested {
		return nil, fundnova.ErrInvalidTransition
	}
	d.Status = fundnova.DonationRefunded
	d.RefundStatus = fundnova.RefundProcessed
	if d.CampaignID != nil {
		if c, ok := m.campaigns[*d.CampaignID]; ok {
			c.CollectedAmount = c.CollectedAmount.Sub(d.Amount)
			c.DonorCount--
		}
	}
	return cloneDonation(d), nil
}

// Transactions

func (m *memStore) Transactions(ctx context.Context, donationID int) ([]*fundnova.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fundnova.Transaction
	for _, t := range m.txns {
		if t.DonationID == donationID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) TransactionByProviderID(ctx context.Context, provider, providerTransactionID string) (*fundnova.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.Provider == provider && t.ProviderTransactionID != nil && *t.ProviderTransactionID == providerTransactionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fundnova.ErrNotFound
}

func (m *memStore) RecordTransaction(ctx context.Context, t *fundnova.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ProviderTransactionID != nil {
		for _, prev := range m.txns {
			if prev.ProviderTransactionID != nil && *prev.ProviderTransactionID == *t.ProviderTransactionID {
				if prev.Status == fundnova.TransactionCompleted {
					return false, nil
				}
				*prev = *t
				prev.ID = t.ID
				return t.Status == fundnova.TransactionCompleted, nil
			}
		}
	}
	m.nextTxnID++
	t.ID = m.nextTxnID
	cp := *t
	m.txns = append(m.txns, &cp)
	return t.Status == fundnova.TransactionCompleted, nil
}

// Bank transfers

func (m *memStore) PrimaryBankAccount(ctx context.Context, organizationID int) (*fundnova.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.OrganizationID == organizationID && acc.Primary {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, fundnova.ErrNotFound
}

func (m *memStore) CreateBankAccount(ctx context.Context, acc *fundnova.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAcctID++
	acc.ID = m.nextAcctID
	cp := *acc
	m.accounts = append(m.accounts, &cp)
	return nil
}

func (m *memStore) BankReference(ctx context.Context, code string) (*fundnova.BankTransferReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.references[code]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	return cloneReference(ref), nil
}

func (m *memStore) CreateBankReference(ctx context.Context, ref *fundnova.BankTransferReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.references[ref.Code]; exists {
		return fundnova.ErrReferenceCollision
	}
	m.nextRefID++
	ref.ID = m.nextRefID
	ref.CreatedAt = time.Now()
	m.references[ref.Code] = cloneReference(ref)
	return nil
}

func (m *memStore) MatchBankReference(ctx context.Context, code string, actual decimal.Decimal, discrepancy *decimal.Decimal) (*fundnova.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.references[code]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	if ref.Status != fundnova.TransferPending {
		return nil, fundnova.ErrInvalidTransition
	}

	now := time.Now()
	m.nextID++
	donation := &fundnova.Donation{
		ID:             m.nextID,
		CreatedAt:      now,
		CampaignID:     ref.CampaignID,
		OrganizationID: ref.OrganizationID,
		DonorID:        ref.DonorID,
		Amount:         actual,
		Currency:       ref.Currency,
		Status:         fundnova.DonationCompleted,
		Rail:           fundnova.RailBankTransfer,
		RefundStatus:   fundnova.RefundNone,
		CompletedAt:    &now,
	}
	m.donations[donation.ID] = donation

	ref.Status = fundnova.TransferMatched
	ref.MatchedDonationID = &donation.ID
	ref.MatchedAt = &now
	ref.Discrepancy = discrepancy

	var res fundnova.MatchResult
	res.Reference = cloneReference(ref)
	res.Donation = cloneDonation(donation)
	if ref.CampaignID != nil {
		ledger, err := m.applyLedgerLocked(*ref.CampaignID, actual)
		if err != nil {
			return nil, err
		}
		res.Ledger = ledger
	}
	res.Receipt = m.issueReceiptLocked(donation.ID, now)
	return &res, nil
}

func (m *memStore) CancelBankReference(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.references[code]
	if !ok {
		return fundnova.ErrNotFound
	}
	if ref.Status != fundnova.TransferPending {
		return fundnova.ErrInvalidTransition
	}
	ref.Status = fundnova.TransferCancelled
	return nil
}

func (m *memStore) ExpireStaleReferences(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cnt := 0
	for _, ref := range m.references {
		if ref.Status == fundnova.TransferPending && !ref.ExpiresAt.After(now) {
			ref.Status = fundnova.TransferExpired
			cnt++
		}
	}
	return cnt, nil
}

// Recurring donations

func (m *memStore) RecurringDonation(ctx context.Context, id int) (*fundnova.RecurringDonation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	return cloneSub(sub), nil
}

func (m *memStore) CreateRecurringDonation(ctx context.Context, sub *fundnova.RecurringDonation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	sub.ID = m.nextSubID
	sub.CreatedAt = time.Now()
	m.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (m *memStore) UpdateRecurringDonation(ctx context.Context, id int, upd fundnova.RecurringUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return fundnova.ErrNotFound
	}
	if upd.Status != nil {
		sub.Status = *upd.Status
	}
	if upd.NextPaymentDate != nil {
		sub.NextPaymentDate = *upd.NextPaymentDate
	}
	if upd.LastPaymentDate != nil {
		sub.LastPaymentDate = upd.LastPaymentDate
	}
	if upd.TotalDonated != nil {
		sub.TotalDonated = *upd.TotalDonated
	}
	if upd.PaymentCount != nil {
		sub.PaymentCount = *upd.PaymentCount
	}
	if upd.FailureCount != nil {
		sub.FailureCount = *upd.FailureCount
	}
	if upd.LastError != nil {
		sub.LastError = *upd.LastError
	}
	return nil
}

func (m *memStore) DueSubscriptions(ctx context.Context, asOf time.Time) ([]*fundnova.RecurringDonation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fundnova.RecurringDonation
	for id := 1; id <= m.nextSubID; id++ {
		sub, ok := m.subs[id]
		if ok && sub.Status == fundnova.SubscriptionActive && !sub.NextPaymentDate.After(asOf) {
			out = append(out, cloneSub(sub))
		}
	}
	return out, nil
}

// Receipts

func (m *memStore) Receipt(ctx context.Context, donationID int) (*fundnova.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[donationID]
	if !ok {
		return nil, fundnova.ErrNotFound
	}
	cp := *receipt
	return &cp, nil
}

// Audit trail

func (m *memStore) CreateAuditLog(ctx context.Context, msg string, authorID *int, system bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	m.logs = append(m.logs, &fundnova.AuditLog{
		ID:        m.nextLogID,
		LogTime:   time.Now(),
		SystemLog: system,
		Message:   msg,
		AuthorID:  authorID,
	})
	return m.nextLogID, nil
}

func (m *memStore) AuditLogs(ctx context.Context, limit, offset int) ([]*fundnova.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fundnova.AuditLog
	for i := len(m.logs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *m.logs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

// auditContains reports whether any stored audit log message contains the
// given substring.
func (m *memStore) auditContains(sub string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if strings.Contains(l.Message, sub) {
			return true
		}
	}
	return false
}
