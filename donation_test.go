package fundnova

import (
	"testing"
	"time"
)

type transitionTest struct {
	From  DonationStatus
	To    DonationStatus
	Valid bool
}

var transitionExamples = map[string]transitionTest{
	"pending_completed":   {DonationPending, DonationCompleted, true},
	"pending_failed":      {DonationPending, DonationFailed, true},
	"pending_refunded":    {DonationPending, DonationRefunded, false},
	"completed_refunded":  {DonationCompleted, DonationRefunded, true},
	"completed_failed":    {DonationCompleted, DonationFailed, false},
	"completed_pending":   {DonationCompleted, DonationPending, false},
	"completed_completed": {DonationCompleted, DonationCompleted, false},
	"failed_completed":    {DonationFailed, DonationCompleted, false},
	"failed_refunded":     {DonationFailed, DonationRefunded, false},
	"refunded_pending":    {DonationRefunded, DonationPending, false},
	"refunded_completed":  {DonationRefunded, DonationCompleted, false},
}

func TestDonationTransitions(t *testing.T) {
	for k, v := range transitionExamples {
		t.Run(k, func(t *testing.T) {
			if got := ValidDonationTransition(v.From, v.To); got != v.Valid {
				t.Fatalf("ValidDonationTransition(%s, %s) = %v, expected %v", v.From, v.To, got, v.Valid)
			}
		})
	}
}

func TestRefundWindow(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &Donation{CreatedAt: created}
	window := DefaultRefundWindowDays * 24 * time.Hour

	if !d.InRefundWindow(created.Add(13*24*time.Hour), window) {
		t.Fatal("Refund inside the window should be allowed")
	}
	if !d.InRefundWindow(created.Add(window), window) {
		t.Fatal("Refund exactly at the window edge should be allowed")
	}
	if d.InRefundWindow(created.Add(window+time.Minute), window) {
		t.Fatal("Refund past the window should be rejected")
	}
}
