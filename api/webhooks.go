package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/gateway"
	"github.com/FundProjects/fundnova/internal/config"
	"github.com/FundProjects/fundnova/sudoapi/flags"
	"github.com/shopspring/decimal"
)

type gatewayEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type chargeEventData struct {
	DonationID    int    `json:"donation_id"`
	TransactionID string `json:"transaction_id"`

	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	Currency string `json:"currency"`

	DeclineCode    string `json:"decline_code"`
	DeclineMessage string `json:"decline_message"`
}

// gatewayWebhook handles asynchronous charge settlements from the payment
// provider. Delivery is at-least-once, so every path below has to be safe to
// replay.
func (s *API) gatewayWebhook(w http.ResponseWriter, r *http.Request) {
	secret := flags.GatewayWebhookSecret.Value()
	if secret == "" {
		slog.WarnContext(r.Context(), "Gateway webhook was POSTed but no secret was specified in config file")
		errorData(w, "Webhook secret not rolled out", 400)
		return
	}

	if r.Header.Get("X-Signature-Sha256") == "" {
		errorData(w, "Invalid signature", 400)
		return
	}
	mac := hmac.New(sha256.New, []byte(secret))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r.Body); err != nil {
		slog.WarnContext(r.Context(), "Couldn't read body to buffer", slog.Any("err", err))
		errorData(w, "Couldn't read body to buffer", 500)
		return
	}
	mac.Write(buf.Bytes())
	expectedMAC := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expectedMAC), []byte(r.Header.Get("X-Signature-Sha256"))) {
		errorData(w, "Invalid signature", 400)
		return
	}

	var ev gatewayEvent
	if err := json.NewDecoder(&buf).Decode(&ev); err != nil {
		slog.WarnContext(r.Context(), "Invalid webhook JSON", slog.Any("err", err))
		errorData(w, "Invalid JSON", 400)
		return
	}

	var data chargeEventData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		slog.WarnContext(r.Context(), "Invalid webhook charge data", slog.Any("err", err))
		errorData(w, "Invalid JSON", 400)
		return
	}
	if data.DonationID <= 0 {
		errorData(w, "Missing donation id", 400)
		return
	}

	res := &gateway.Result{
		Provider:              config.Payment.Provider,
		ProviderTransactionID: data.TransactionID,
		DeclineCode:           data.DeclineCode,
		DeclineMessage:        data.DeclineMessage,
		Raw:                   json.RawMessage(buf.Bytes()),
	}
	if fee, err := decimal.NewFromString(data.Fee); err == nil {
		res.Fee = fee
	}

	switch ev.Type {
	case "charge.succeeded":
		res.Outcome = gateway.OutcomeApproved
		if _, err := s.base.RecordAttempt(r.Context(), data.DonationID, res); err != nil {
			statusError(w, err)
			return
		}
		if _, err := s.base.CompleteDonation(r.Context(), data.DonationID); err != nil {
			// A replayed settlement for an already-settled donation is fine.
			if errors.Is(err, fundnova.ErrInvalidTransition) {
				returnData(w, "Already settled")
				return
			}
			statusError(w, err)
			return
		}
		returnData(w, "Donation completed")
	case "charge.failed":
		res.Outcome = gateway.OutcomeDeclined
		if _, err := s.base.RecordAttempt(r.Context(), data.DonationID, res); err != nil {
			statusError(w, err)
			return
		}
		reason := data.DeclineMessage
		if reason == "" {
			reason = data.DeclineCode
		}
		if err := s.base.FailDonation(r.Context(), data.DonationID, reason); err != nil {
			if errors.Is(err, fundnova.ErrInvalidTransition) {
				returnData(w, "Already settled")
				return
			}
			statusError(w, err)
			return
		}
		returnData(w, "Donation failed")
	default:
		slog.InfoContext(r.Context(), "Unhandled gateway event", slog.String("type", ev.Type))
		returnData(w, "Event ignored")
	}
}
