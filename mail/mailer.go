package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net"
	neturl "net/url"
	"net/smtp"
	"strconv"

	"cuwep/config"
	"cuwep/metrics"
	"cuwep/utils"
)

// Mailer delivers account lifecycle emails over SMTP. The raw send function
// is injected so tests can capture messages without a mail server.
type Mailer struct {
	cfg  *config.Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer from application configuration
func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		cfg:  cfg,
		send: smtp.SendMail,
	}
}

// SendConfirmation mails the registration confirmation link
func (m *Mailer) SendConfirmation(email, code string) error {
	link := fmt.Sprintf("%sconfirm?email=%s&code=%s",
		m.cfg.AppBaseURL, neturl.QueryEscape(email), neturl.QueryEscape(code))
	return m.sendHTML(email, "Registration confirmation", confirmTemplate, linkData{
		Email: email,
		Link:  link,
	})
}

// SendPasswordReset mails the password reset link
func (m *Mailer) SendPasswordReset(email, code string) error {
	link := fmt.Sprintf("%sreset_password?email=%s&code=%s",
		m.cfg.AppBaseURL, neturl.QueryEscape(email), neturl.QueryEscape(code))
	return m.sendHTML(email, "Password reset email", resetTemplate, linkData{
		Email: email,
		Link:  link,
	})
}

// SendConfirmationAsync delivers in the background; failures are logged, the
// request that queued the mail already succeeded.
func (m *Mailer) SendConfirmationAsync(email, code string) {
	go func() {
		if err := m.SendConfirmation(email, code); err != nil {
			utils.LogError("MAIL_CONFIRMATION", err, "recipient", email)
			metrics.IncrementEmail("confirmation", "failed")
			return
		}
		metrics.IncrementEmail("confirmation", "sent")
	}()
}

// SendPasswordResetAsync delivers in the background; failures are logged.
func (m *Mailer) SendPasswordResetAsync(email, code string) {
	go func() {
		if err := m.SendPasswordReset(email, code); err != nil {
			utils.LogError("MAIL_PASSWORD_RESET", err, "recipient", email)
			metrics.IncrementEmail("reset", "failed")
			return
		}
		metrics.IncrementEmail("reset", "sent")
	}()
}

type linkData struct {
	Email string
	Link  string
}

func (m *Mailer) sendHTML(to, subject string, tmpl *template.Template, data any) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.MailFromName, m.cfg.MailFrom)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	addr := net.JoinHostPort(m.cfg.MailServer, strconv.Itoa(m.cfg.MailPort))

	var auth smtp.Auth
	if m.cfg.MailUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.MailUsername, m.cfg.MailPassword, m.cfg.MailServer)
	}

	if err := m.send(addr, auth, m.cfg.MailFrom, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
