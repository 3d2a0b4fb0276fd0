package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/config"
)

// emitEvent queues an event for the asynchronous consumers. State changes
// must already be committed when this is called; if the buffer is full the
// event is dropped rather than blocking a payment path.
func (s *BaseAPI) emitEvent(ctx context.Context, ev *fundnova.Event) {
	select {
	case s.eventChan <- ev:
	default:
		slog.WarnContext(ctx, "Event buffer full, dropping event", slog.String("kind", string(ev.Kind)))
	}
}

func (s *BaseAPI) LogSystemAction(ctx context.Context, msg string, args ...any) {
	ev := fundnova.NewEvent("system_action", fmt.Sprintf(msg, args...))
	s.emitEvent(ctx, ev)
}

func (s *BaseAPI) ingestEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case ev := <-s.eventChan:
			if _, err := s.db.CreateAuditLog(ctx, string(ev.Kind)+": "+ev.Message, ev.DonorID, ev.DonorID == nil); err != nil {
				slog.WarnContext(ctx, "Couldn't store audit log entry", slog.Any("err", err))
			}

			var b strings.Builder
			b.WriteString("Event")
			if ev.DonorID != nil {
				b.WriteString(fmt.Sprintf(" (donor #%d)", *ev.DonorID))
			}
			b.WriteString(fmt.Sprintf(" [%s]: %s", ev.Kind, ev.Message))
			slog.InfoContext(ctx, b.String())

			if notifiableEvent(ev.Kind) {
				s.notifyEvent(ctx, ev)
			}
		}
	}
}

// notifiableEvent decides which events warrant an operator mail. High-volume
// kinds (every created/completed donation) stay out of the inbox.
func notifiableEvent(kind fundnova.EventKind) bool {
	switch kind {
	case fundnova.EventCampaignCompleted, fundnova.EventTransferDiscrepancy,
		fundnova.EventSubscriptionPaused, fundnova.EventRefundRequested:
		return true
	}
	return false
}

func (s *BaseAPI) notifyEvent(ctx context.Context, ev *fundnova.Event) {
	if s.mailer == nil || config.Email.NotifyAddress == "" {
		return
	}
	msg := &fundnova.MailerMessage{
		To:           config.Email.NotifyAddress,
		Subject:      fmt.Sprintf("[fundnova] %s", ev.Kind),
		PlainContent: ev.Message,
	}
	if err := s.mailer.SendEmail(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Couldn't send notification mail", slog.Any("err", err))
	}
}

func (s *BaseAPI) AuditLogs(ctx context.Context, limit, offset int) ([]*fundnova.AuditLog, error) {
	logs, err := s.db.AuditLogs(ctx, limit, offset)
	if err != nil {
		return nil, WrapError(err, "Couldn't fetch audit logs")
	}
	return logs, nil
}
