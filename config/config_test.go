package config

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeEmails(t *testing.T) {
	got := normalizeEmails([]string{" Admin@Agency.gov, ops@agency.gov ", "", "IT@agency.gov"})
	want := []string{"admin@agency.gov", "ops@agency.gov", "it@agency.gov"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if normalizeEmails(nil) != nil {
		t.Error("nil input should stay nil")
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("ADMIN_EMAILS", "Boss@Agency.gov, deputy@agency.gov")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if !reflect.DeepEqual(cfg.Admin.Emails, []string{"boss@agency.gov", "deputy@agency.gov"}) {
		t.Errorf("admin emails = %v", cfg.Admin.Emails)
	}
	if cfg.Loan.DefaultLoanDays != 14 {
		t.Errorf("default loan days = %d", cfg.Loan.DefaultLoanDays)
	}
	if cfg.Auth.RevocationWindow != 24*time.Hour {
		t.Errorf("revocation window = %s", cfg.Auth.RevocationWindow)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "ict", SSLMode: "disable"}
	want := "host=db user=u password=p dbname=ict port=5433 sslmode=disable"
	if d.DSN() != want {
		t.Errorf("DSN = %q", d.DSN())
	}
}
