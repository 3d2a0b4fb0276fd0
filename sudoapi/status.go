package sudoapi

import (
	"github.com/FundProjects/fundnova"
)

var (
	ErrNoUpdates       = fundnova.ErrNoUpdates
	ErrMissingRequired = fundnova.ErrMissingRequired

	ErrNotFound     = fundnova.ErrNotFound
	ErrUnknownError = fundnova.ErrUnknownError

	ErrInvalidTransition = fundnova.ErrInvalidTransition
)

type StatusError = fundnova.StatusError

// Reimplement Statusf and WrapError functions here for faster reference

func Statusf(status int, format string, args ...any) *StatusError {
	return fundnova.Statusf(status, format, args...)
}

func WrapError(err error, text string) *StatusError {
	return fundnova.WrapError(err, text)
}
