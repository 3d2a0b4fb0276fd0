package sudoapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	donationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundnova_donations_completed_total",
		Help: "Completed donations, by payment rail",
	}, []string{"rail"})

	donationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundnova_donations_failed_total",
		Help: "Failed donation attempts",
	})

	refundsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundnova_refunds_processed_total",
		Help: "Refunds fully processed",
	})

	transfersMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundnova_transfers_matched_total",
		Help: "Bank transfer references matched to incoming payments",
	})

	transfersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundnova_transfers_expired_total",
		Help: "Bank transfer references expired by the cleanup job",
	})

	billingCharges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundnova_billing_charges_total",
		Help: "Recurring billing charge attempts, by outcome",
	}, []string{"outcome"})

	receiptsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundnova_receipts_issued_total",
		Help: "Receipts issued for completed donations",
	})
)
