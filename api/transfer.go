package api

import (
	"net/http"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/util"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *API) initiateTransfer(w http.ResponseWriter, r *http.Request) {
	var args struct {
		CampaignID     *int   `json:"campaign_id"`
		OrganizationID int    `json:"organization_id"`
		ExpectedAmount string `json:"expected_amount"`
		Currency       string `json:"currency"`
		SenderName     string `json:"sender_name"`
		SenderIBAN     string `json:"sender_iban"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if err := (validation.Errors{
		"expected_amount": validation.Validate(args.ExpectedAmount, validation.Required),
		"sender_name":     validation.Validate(args.SenderName, validation.Required, validation.Length(2, 200)),
	}).Filter(); err != nil {
		errorData(w, err, 400)
		return
	}

	expected, err := fundnova.ParseAmount(args.ExpectedAmount)
	if err != nil {
		statusError(w, err)
		return
	}

	ref := &fundnova.BankTransferReference{
		CampaignID:     args.CampaignID,
		OrganizationID: args.OrganizationID,
		DonorID:        util.DonorID(r),
		ExpectedAmount: expected,
		Currency:       args.Currency,
		SenderName:     args.SenderName,
		SenderIBAN:     args.SenderIBAN,
	}
	if err := s.base.InitiateTransfer(r.Context(), ref); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, ref)
}

func (s *API) getTransfer(w http.ResponseWriter, r *http.Request) {
	ref, err := s.base.BankReference(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, ref)
}

// matchTransfer reconciles an incoming statement line against its reference.
// Driven by an admin or by a statement import tool with the admin key.
func (s *API) matchTransfer(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Amount string `json:"amount"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	actual, err := fundnova.ParseAmount(args.Amount)
	if err != nil {
		statusError(w, err)
		return
	}

	res, err := s.base.MatchTransfer(r.Context(), chi.URLParam(r, "code"), actual)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, res)
}

func (s *API) cancelTransfer(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.base.CancelTransfer(r.Context(), code, util.DonorID(r), util.IsAdmin(r)); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, "Transfer reference cancelled")
}
