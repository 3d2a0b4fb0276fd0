package api

import (
	"context"
	"net/http"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/util"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	var args struct {
		CampaignID     *int   `json:"campaign_id"`
		OrganizationID *int   `json:"organization_id"`
		Amount         string `json:"amount"`
		Currency       string `json:"currency"`
		Frequency      string `json:"frequency"`
		CardToken      string `json:"card_token"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if err := (validation.Errors{
		"amount":     validation.Validate(args.Amount, validation.Required),
		"frequency":  validation.Validate(args.Frequency, validation.Required, validation.In("weekly", "monthly", "yearly")),
		"card_token": validation.Validate(args.CardToken, validation.Required),
	}).Filter(); err != nil {
		errorData(w, err, 400)
		return
	}

	amount, err := fundnova.ParseAmount(args.Amount)
	if err != nil {
		statusError(w, err)
		return
	}

	donorID := util.DonorID(r)
	if donorID == nil {
		errorData(w, "Subscriptions require an authenticated donor", 401)
		return
	}

	sub := &fundnova.RecurringDonation{
		DonorID:        *donorID,
		CampaignID:     args.CampaignID,
		OrganizationID: args.OrganizationID,
		Amount:         amount,
		Currency:       args.Currency,
		Frequency:      fundnova.Frequency(args.Frequency),
		CardToken:      args.CardToken,
	}
	if err := s.base.CreateSubscription(r.Context(), sub); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, sub)
}

func (s *API) getSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid subscription id", 400)
		return
	}
	sub, err := s.base.Subscription(r.Context(), id)
	if err != nil {
		statusError(w, err)
		return
	}
	if !util.IsAdmin(r) {
		if donorID := util.DonorID(r); donorID == nil || sub.DonorID != *donorID {
			errorData(w, "You can only view your own subscriptions", 403)
			return
		}
	}
	returnData(w, sub)
}

func (s *API) pauseSubscription(w http.ResponseWriter, r *http.Request) {
	s.updateSubscription(w, r, s.base.PauseSubscription, "Subscription paused")
}

func (s *API) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	s.updateSubscription(w, r, s.base.ResumeSubscription, "Subscription resumed")
}

func (s *API) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	s.updateSubscription(w, r, s.base.CancelSubscription, "Subscription cancelled")
}

func (s *API) updateSubscription(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int, requesterID *int, admin bool) error, okMsg string) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid subscription id", 400)
		return
	}
	if err := op(r.Context(), id, util.DonorID(r), util.IsAdmin(r)); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, okMsg)
}
