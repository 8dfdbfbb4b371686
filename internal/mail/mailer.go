// Package mail delivers plain-text email over SMTP.
package mail

import (
	"fmt"
	"net/smtp"

	"github.com/iliyamo/tour-booking-api/internal/config"
)

// Mailer holds the SMTP relay settings.  An unconfigured mailer reports an
// error on send instead of silently dropping mail.
type Mailer struct {
	host string
	port string
	user string
	pass string
}

func New(cfg config.Config) *Mailer {
	return &Mailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
	}
}

func (m *Mailer) configured() bool {
	return m.host != "" && m.port != "" && m.user != "" && m.pass != ""
}

// Send delivers one plain-text message.  The SMTP user doubles as the from
// address.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.configured() {
		return fmt.Errorf("smtp not configured")
	}

	addr := m.host + ":" + m.port
	from := m.user

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body + "\r\n"

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
}
