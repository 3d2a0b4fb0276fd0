package api

import (
	"net/http"

	"github.com/FundProjects/fundnova/sudoapi"
	"github.com/go-chi/chi/v5"
)

// API is the REST surface over the service layer.
type API struct {
	base *sudoapi.BaseAPI
}

func New(base *sudoapi.BaseAPI) *API {
	return &API{base}
}

func (s *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.SetupSession)

	r.Route("/donations", func(r chi.Router) {
		r.Post("/", s.createDonation)
		r.With(s.MustBeAdmin).Get("/", s.listDonations)
		r.Get("/{id}", s.getDonation)
		r.Get("/{id}/receipt", s.getReceipt)
		r.With(s.MustBeAuthed).Post("/{id}/refund", s.requestRefund)
		r.With(s.MustBeAdmin).Post("/{id}/processRefund", s.processRefund)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.With(s.MustBeAdmin).Post("/", s.createCampaign)
		r.Get("/{slug}", s.getCampaign)
		r.With(s.MustBeAdmin).Get("/{id}/verifyLedger", s.verifyLedger)
	})

	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", s.initiateTransfer)
		r.Get("/{code}", s.getTransfer)
		r.With(s.MustBeAdmin).Post("/{code}/match", s.matchTransfer)
		r.With(s.MustBeAuthed).Post("/{code}/cancel", s.cancelTransfer)
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.With(s.MustBeAuthed).Post("/", s.createSubscription)
		r.With(s.MustBeAuthed).Get("/{id}", s.getSubscription)
		r.With(s.MustBeAuthed).Post("/{id}/pause", s.pauseSubscription)
		r.With(s.MustBeAuthed).Post("/{id}/resume", s.resumeSubscription)
		r.With(s.MustBeAuthed).Post("/{id}/cancel", s.cancelSubscription)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/gateway", s.gatewayWebhook)
	})

	r.With(s.MustBeAdmin).Get("/auditLogs", s.getAuditLogs)

	return r
}
