package api

import (
	"net/http"

	"github.com/FundProjects/fundnova"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Name           string `json:"name"`
		OrganizationID int    `json:"organization_id"`
		TargetAmount   string `json:"target_amount"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if err := (validation.Errors{
		"name":            validation.Validate(args.Name, validation.Required, validation.Length(3, 200)),
		"organization_id": validation.Validate(args.OrganizationID, validation.Required, validation.Min(1)),
		"target_amount":   validation.Validate(args.TargetAmount, validation.Required),
	}).Filter(); err != nil {
		errorData(w, err, 400)
		return
	}

	target, err := fundnova.ParseAmount(args.TargetAmount)
	if err != nil {
		statusError(w, err)
		return
	}

	campaign := &fundnova.Campaign{
		Name:           args.Name,
		OrganizationID: args.OrganizationID,
		TargetAmount:   target,
	}
	if err := s.base.CreateCampaign(r.Context(), campaign); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaign)
}

func (s *API) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.base.CampaignBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaign)
}

func (s *API) verifyLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid campaign id", 400)
		return
	}
	check, err := s.base.VerifyCampaignLedger(r.Context(), id)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, check)
}
