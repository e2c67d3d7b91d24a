package db

import (
	"fmt"
	"strings"

	"Gin_postgres_redis_ict_loan/config"
	"Gin_postgres_redis_ict_loan/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Department{},
		&models.Grade{},
		&models.Position{},
		&models.Equipment{},
		&models.LoanApplication{},
		&models.LoanApplicationItem{},
		&models.LoanTransaction{},
		&models.Approval{},
		&models.EmailApplication{},
	); err != nil {
		return err
	}

	// An equipment unit may sit in at most one open transaction.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_equipment
	  ON %s (equipment_id)
	  WHERE return_timestamp IS NULL AND equipment_id IS NOT NULL AND deleted_at IS NULL;
	`, models.LoanTransactionTable, models.LoanTransactionTable)).Error; err != nil {
		return err
	}

	// One current decision per approvable and stage; older rows are superseded.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_current_per_stage
	  ON %s (approvable_type, approvable_id, stage)
	  WHERE superseded_at IS NULL AND deleted_at IS NULL;
	`, models.ApprovalTable, models.ApprovalTable)).Error; err != nil {
		return err
	}

	// Overdue sweep scans issued applications by end date.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_by_end_date
	  ON %s (loan_end_date)
	  WHERE status IN ('issued', 'partially_issued') AND deleted_at IS NULL;
	`, models.LoanApplicationTable, models.LoanApplicationTable)).Error; err != nil {
		return err
	}

	return nil
}
