package flags

import (
	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/config"
)

var (
	MigrateOnStart = config.GenFlag("behavior.db.run_migrations", true, "Run PostgreSQL migrations on platform start")
)

// donations
var (
	MinDonationAmount = config.GenFlag[float64]("behavior.donations.min_amount", 5, "Minimum accepted donation amount")
	RefundWindowDays  = config.GenFlag[int]("behavior.donations.refund_window_days", fundnova.DefaultRefundWindowDays, "Number of days after a donation during which donors may request a refund")
)

// bank transfers
var (
	TransferExpiryDays = config.GenFlag[int]("behavior.transfers.expiry_days", fundnova.DefaultTransferExpiryDays, "Number of days a pending bank transfer reference stays matchable")

	// Transfers are matched regardless of amount; this only decides when ops
	// gets pinged about the difference.
	TransferTolerancePct = config.GenFlag[int]("behavior.transfers.tolerance_pct", 20, "Percentage deviation from the expected amount above which a matched transfer is flagged for manual review")
)

// recurring billing
var (
	// Under the threshold a failed subscription stays due and every sweep
	// retries it; the schedule only advances on success.
	MaxBillingFailures = config.GenFlag[int]("behavior.billing.max_failures", fundnova.MaxBillingFailures, "Consecutive charge failures before a subscription is paused")
	BillingConcurrency = config.GenFlag[int]("behavior.billing.concurrency", 4, "Maximum number of subscriptions charged in parallel during a billing sweep")
)

// integrations
var (
	GatewayWebhookSecret = config.GenFlag("integrations.gateway.webhook_secret", "", "Shared secret for verifying payment gateway webhook signatures")
	AdminAPIKey          = config.GenFlag("integrations.admin.api_key", "", "API key granting admin operations (refund processing, transfer matching)")
)
