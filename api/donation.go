package api

import (
	"net/http"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/util"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *API) createDonation(w http.ResponseWriter, r *http.Request) {
	var args struct {
		CampaignID     *int   `json:"campaign_id"`
		OrganizationID int    `json:"organization_id"`
		Amount         string `json:"amount"`
		Currency       string `json:"currency"`
		Anonymous      bool   `json:"anonymous"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if err := validation.Validate(args.Amount, validation.Required); err != nil {
		errorData(w, "Missing amount", 400)
		return
	}

	amount, err := fundnova.ParseAmount(args.Amount)
	if err != nil {
		statusError(w, err)
		return
	}

	donation := &fundnova.Donation{
		CampaignID:     args.CampaignID,
		OrganizationID: args.OrganizationID,
		DonorID:        util.DonorID(r),
		Anonymous:      args.Anonymous || util.DonorID(r) == nil,
		Amount:         amount,
		Currency:       args.Currency,
		Rail:           fundnova.RailCard,
	}
	if err := s.base.CreateDonation(r.Context(), donation); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) getDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid donation id", 400)
		return
	}
	donation, err := s.base.Donation(r.Context(), id)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) listDonations(w http.ResponseWriter, r *http.Request) {
	var args fundnova.DonationFilter
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if args.Limit <= 0 || args.Limit > 100 {
		args.Limit = 50
	}

	donations, err := s.base.Donations(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	cnt, err := s.base.CountDonations(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, struct {
		Donations []*fundnova.Donation `json:"donations"`
		Count     int                  `json:"count"`
	}{donations, cnt})
}

func (s *API) requestRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid donation id", 400)
		return
	}
	var args struct {
		Reason string `json:"reason"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if err := validation.Validate(args.Reason, validation.Required, validation.Length(1, 500)); err != nil {
		errorData(w, "Refund reason is required", 400)
		return
	}

	if err := s.base.RequestRefund(r.Context(), id, args.Reason, util.DonorID(r), util.IsAdmin(r)); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, "Refund requested")
}

func (s *API) processRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid donation id", 400)
		return
	}
	donation, err := s.base.ProcessRefund(r.Context(), id)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errorData(w, "Invalid donation id", 400)
		return
	}
	receipt, err := s.base.Receipt(r.Context(), id)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, receipt)
}

func (s *API) getAuditLogs(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if args.Limit <= 0 || args.Limit > 200 {
		args.Limit = 50
	}
	logs, err := s.base.AuditLogs(r.Context(), args.Limit, args.Offset)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, logs)
}
