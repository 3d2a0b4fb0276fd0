package fundnova

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventDonationCreated    EventKind = "donation_created"
	EventDonationCompleted  EventKind = "donation_completed"
	EventDonationFailed     EventKind = "donation_failed"
	EventRefundRequested    EventKind = "refund_requested"
	EventCampaignCompleted  EventKind = "campaign_completed"
	EventRefundProcessed    EventKind = "refund_processed"
	EventTransferMatched    EventKind = "transfer_matched"
	// EventTransferDiscrepancy flags a matched transfer whose actual amount
	// strayed too far from the expected one; ops review it manually.
	EventTransferDiscrepancy EventKind = "transfer_discrepancy"
	EventSubscriptionPaused  EventKind = "subscription_paused"
)

// Event is the outbound notification emitted after a state change commits.
// The core guarantees "emit after commit", not delivery: consumers (audit
// trail, mails) run asynchronously and may drop events on shutdown.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`

	DonationID int  `json:"donation_id,omitempty"`
	CampaignID *int `json:"campaign_id,omitempty"`
	DonorID    *int `json:"donor_id,omitempty"`

	Message   string    `json:"message"`
	EmittedAt time.Time `json:"emitted_at"`
}

func NewEvent(kind EventKind, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		EmittedAt: time.Now(),
	}
}
