package sudoapi

import (
	"context"
	"testing"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*BaseAPI, *memStore, *gateway.Fake) {
	t.Helper()
	store := newMemStore()
	fake := gateway.NewFake()
	base, err := GetBaseAPI(context.Background(), store, nil, fake)
	require.NoError(t, err)
	return base, store, fake
}

func testCampaign(t *testing.T, base *BaseAPI, target int64) *fundnova.Campaign {
	t.Helper()
	campaign := &fundnova.Campaign{
		Name:           "Test campaign",
		OrganizationID: 1,
		TargetAmount:   decimal.NewFromInt(target),
	}
	require.NoError(t, base.CreateCampaign(context.Background(), campaign))
	return campaign
}

func testDonation(t *testing.T, base *BaseAPI, campaignID int, amount int64) *fundnova.Donation {
	t.Helper()
	donation := &fundnova.Donation{
		CampaignID: &campaignID,
		Amount:     decimal.NewFromInt(amount),
		Rail:       fundnova.RailCard,
	}
	require.NoError(t, base.CreateDonation(context.Background(), donation))
	return donation
}

// drainEvents empties the event buffer so tests can assert on what a code
// path emitted. The ingestion goroutine is deliberately not running in tests.
func drainEvents(base *BaseAPI) []*fundnova.Event {
	var out []*fundnova.Event
	for {
		select {
		case ev := <-base.eventChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func hasEventKind(events []*fundnova.Event, kind fundnova.EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
