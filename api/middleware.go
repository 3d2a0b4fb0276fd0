package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/FundProjects/fundnova/internal/util"
	"github.com/FundProjects/fundnova/sudoapi/flags"
)

// SetupSession reads the donor identity the upstream auth service put on the
// request. Authentication itself is an external collaborator; this only
// propagates the already-verified identity into the context.
func (s *API) SetupSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if hdr := r.Header.Get("X-Donor-ID"); hdr != "" {
			id, err := strconv.Atoi(hdr)
			if err != nil || id <= 0 {
				errorData(w, "Invalid donor id", http.StatusBadRequest)
				return
			}
			ctx = util.WithDonorID(ctx, id)
		}
		if key := flags.AdminAPIKey.Value(); key != "" {
			given := r.Header.Get("X-Api-Key")
			if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(key)) == 1 {
				ctx = util.WithAdmin(ctx)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MustBeAuthed makes sure the request carries a donor identity.
func (s *API) MustBeAuthed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if util.DonorID(r) == nil && !util.IsAdmin(r) {
			errorData(w, "You must be authenticated to do this", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MustBeAdmin gates reconciliation and refund-processing operations.
func (s *API) MustBeAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !util.IsAdmin(r) {
			errorData(w, "You must be an admin to do this", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
