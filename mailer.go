package fundnova

import "context"

type Mailer interface {
	SendEmail(ctx context.Context, msg *MailerMessage) error
}

type MailerMessage struct {
	To      string
	ReplyTo string
	Subject string

	PlainContent string
	HTMLContent  string
}
