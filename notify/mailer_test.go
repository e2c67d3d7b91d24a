package notify

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"Gin_postgres_redis_ict_loan/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
	auth bool
}

func capture(m *Mailer, out *[]sent, err error) {
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*out = append(*out, sent{addr: addr, from: from, to: to, msg: string(msg), auth: a != nil})
		return err
	}
}

func TestMailerDevModeOnlyLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMailer(config.SMTPConfig{}, zap.New(core))
	var got []sent
	capture(m, &got, nil)

	if m.Enabled() {
		t.Fatal("mailer without host should be disabled")
	}
	if err := m.Send([]string{"a@agency.gov"}, "Loan approved", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("dev mode sent %d messages", len(got))
	}
	if logs.FilterMessage("mail (dev, not sent)").Len() != 1 {
		t.Error("dev mode did not log the message")
	}
}

func TestMailerSends(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host: "smtp.agency.gov", Port: "587", Username: "noreply@agency.gov", Password: "pw", AppName: "ICT Loan",
	}, zap.NewNop())
	var got []sent
	capture(m, &got, nil)

	if err := m.Send([]string{" a@agency.gov ", "", "b@agency.gov"}, "Equipment issued", "Please return by Friday."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("sent %d messages", len(got))
	}
	s := got[0]
	if s.addr != "smtp.agency.gov:587" || s.from != "noreply@agency.gov" || !s.auth {
		t.Errorf("envelope = %+v", s)
	}
	if len(s.to) != 2 || s.to[0] != "a@agency.gov" {
		t.Errorf("recipients = %v", s.to)
	}
	if !strings.Contains(s.msg, "Subject: [ICT Loan] Equipment issued\r\n") || !strings.HasSuffix(s.msg, "\r\n\r\nPlease return by Friday.") {
		t.Errorf("message = %q", s.msg)
	}
}

func TestMailerErrors(t *testing.T) {
	m := NewMailer(config.SMTPConfig{Host: "smtp.agency.gov", Port: "25", From: "ict@agency.gov"}, zap.NewNop())
	var got []sent
	capture(m, &got, errors.New("421 service not available"))

	if err := m.Send([]string{" "}, "x", "y"); err == nil {
		t.Error("blank recipients accepted")
	}
	err := m.Send([]string{"a@agency.gov"}, "Loan approved", "body")
	if err == nil || !strings.Contains(err.Error(), "421") {
		t.Errorf("err = %v", err)
	}
	if len(got) != 1 || got[0].auth {
		t.Errorf("unauthenticated send expected, got %+v", got)
	}
}
