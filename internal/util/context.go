package util

import (
	"context"
	"net/http"
)

type FNContextType string

const (
	DonorIDKey FNContextType = "donor_id"
	AdminKey   FNContextType = "is_admin"
)

// DonorID returns the authenticated donor's id, or nil for anonymous
// requests. Authentication itself happens upstream; handlers only consume
// the identity the middleware put in the context.
func DonorID(r *http.Request) *int {
	if id, ok := r.Context().Value(DonorIDKey).(int); ok {
		return &id
	}
	return nil
}

func IsAdmin(r *http.Request) bool {
	admin, ok := r.Context().Value(AdminKey).(bool)
	return ok && admin
}

func WithDonorID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, DonorIDKey, id)
}

func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, AdminKey, true)
}
