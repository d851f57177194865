package notify

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// sender abstracts gomail's dialer so tests can capture outgoing messages.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailerConfig holds the SMTP transport settings.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends the "your image is ready" email. Notify never panics or
// returns an error: transport failures are logged and reported as false so
// they can be stamped on the job record without failing the job.
type Mailer struct {
	dialer    sender
	from      string
	retainFor time.Duration
	logger    *slog.Logger
}

// NewMailer creates a Mailer using SMTP with STARTTLS.
func NewMailer(cfg *MailerConfig, retainFor time.Duration, logger *slog.Logger) *Mailer {
	return &Mailer{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:      cfg.From,
		retainFor: retainFor,
		logger:    logger,
	}
}

// Notify delivers the completion email with the download link. Returns true
// on success, false on any failure.
func (m *Mailer) Notify(recipient, link string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Mailer panic",
				slog.Any("panic", r),
				slog.String("recipient", recipient),
			)
			ok = false
		}
	}()

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", "Your background-removed image is ready")
	msg.SetBody("text/plain", m.body(link))

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("Failed to send notification",
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
		return false
	}

	m.logger.Info("Notification sent",
		slog.String("recipient", recipient),
	)

	return true
}

func (m *Mailer) body(link string) string {
	hours := int(m.retainFor.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf(
		"Hello,\n\nYour image has been processed!\nDownload link (expires in %dh): %s\n\nThanks for using our service.",
		hours, link,
	)
}
