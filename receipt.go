package fundnova

import (
	"fmt"
	"time"
)

// Receipt is the donor-facing proof of a completed donation. Numbers are
// sequential per calendar year with no gaps or duplicates, which is why
// allocation is serialized at the storage layer.
type Receipt struct {
	ID         int       `json:"id"`
	DonationID int       `json:"donation_id"`
	Year       int       `json:"year"`
	Sequence   int       `json:"sequence"`
	Number     string    `json:"number"`
	IssuedAt   time.Time `json:"issued_at"`
}

func FormatReceiptNumber(year, sequence int) string {
	return fmt.Sprintf("RCPT-%d-%06d", year, sequence)
}
