package app_test

import (
	"context"
	"testing"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/config"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/testutil"

	"go.uber.org/zap"
)

func TestBootstrapFirstAdmin(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	repo := db.NewRepo(conn)
	ctx := context.Background()
	cfg := config.AdminConfig{BootstrapEmail: "Root@Agency.gov"}

	app.BootstrapFirstAdmin(ctx, cfg, repo, zap.NewNop())
	u, err := repo.FindUserByEmail(ctx, "root@agency.gov")
	if err != nil {
		t.Fatalf("bootstrap user missing: %v", err)
	}
	if !u.IsAdmin || !u.IsBPMStaff || !u.IsApprover {
		t.Errorf("roles = %v", u.Roles())
	}

	app.BootstrapFirstAdmin(ctx, config.AdminConfig{BootstrapEmail: "second@agency.gov"}, repo, zap.NewNop())
	if _, err := repo.FindUserByEmail(ctx, "second@agency.gov"); err == nil {
		t.Error("bootstrap ran although an admin exists")
	}
}
