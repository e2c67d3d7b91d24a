package app

import (
	"context"

	"Gin_postgres_redis_ict_loan/config"
	"Gin_postgres_redis_ict_loan/db"

	"go.uber.org/zap"
)

// BootstrapFirstAdmin makes sure the configured bootstrap email exists as an
// admin when the system has none.
func BootstrapFirstAdmin(ctx context.Context, cfg config.AdminConfig, repo *db.Repo, log *zap.Logger) {
	if cfg.BootstrapEmail == "" {
		return
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		log.Error("bootstrap: count admins", zap.Error(err))
		return
	}
	if n > 0 {
		return
	}
	u, err := repo.EnsureUser(ctx, cfg.BootstrapEmail, "")
	if err != nil {
		log.Error("bootstrap: ensure user", zap.String("email", cfg.BootstrapEmail), zap.Error(err))
		return
	}
	if err := repo.SetUserRoles(ctx, u.ID, db.UserRoles{IsAdmin: true, IsBPMStaff: true, IsApprover: true}); err != nil {
		log.Error("bootstrap: grant admin", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	log.Info("bootstrap: first admin created", zap.String("email", u.Email), zap.String("user_id", u.ID))
}
