package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"Gin_postgres_redis_ict_loan/config"

	"go.uber.org/zap"
)

// Notifier hands a message to the mail channel. Callers log failures and
// carry on; a failed send never undoes the write that triggered it.
type Notifier interface {
	Send(to []string, subject, body string) error
}

type Mailer struct {
	cfg config.SMTPConfig
	log *zap.Logger
	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// Enabled is false when no SMTP host is configured; Send then only logs.
func (m *Mailer) Enabled() bool { return m.cfg.Host != "" }

func (m *Mailer) Send(to []string, subject, body string) error {
	to = cleanRecipients(to)
	if len(to) == 0 {
		return fmt.Errorf("no recipients for %q", subject)
	}
	if !m.Enabled() {
		m.log.Info("mail (dev, not sent)",
			zap.Strings("to", to),
			zap.String("subject", subject),
			zap.String("body", body),
		)
		return nil
	}
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := buildMessage(from, to, m.subject(subject), body)
	if err := m.send(m.cfg.Host+":"+m.cfg.Port, auth, from, to, msg); err != nil {
		return fmt.Errorf("send mail %q: %w", subject, err)
	}
	return nil
}

func (m *Mailer) subject(s string) string {
	if m.cfg.AppName == "" {
		return s
	}
	return "[" + m.cfg.AppName + "] " + s
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
