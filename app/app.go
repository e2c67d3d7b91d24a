package app

import (
	"context"
	"time"

	"Gin_postgres_redis_ict_loan/config"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/metrics"
	"Gin_postgres_redis_ict_loan/notify"
	"Gin_postgres_redis_ict_loan/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Ctx = gin.Context
type H = gin.H

// App holds the process-wide dependencies.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Log    *zap.Logger
	Config *config.Config

	Repo        *db.Repo
	Revocations *session.RevocationStore
	Mailer      *notify.Mailer
}

func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zapCfg.Build()
}

// MustNew connects Postgres and Redis and builds the router with the
// standard middleware chain. Any failure is fatal.
func MustNew(cfg *config.Config, log *zap.Logger) *App {
	dbConn, err := db.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}

	return &App{
		Router:      NewRouter(cfg.Server, log),
		DB:          dbConn,
		RDB:         rdb,
		Log:         log,
		Config:      cfg,
		Repo:        db.NewRepo(dbConn),
		Revocations: session.NewRevocationStore(rdb, cfg.Auth.RevocationWindow),
		Mailer:      notify.NewMailer(cfg.SMTP, log),
	}
}

func NewRouter(cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(metrics.Middleware())
	useCORS(r, cfg.WebOrigin)
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	return r
}

// Auth returns the authentication middleware bound to this app's stores.
func (a *App) Auth() gin.HandlerFunc {
	return AuthRequired(AuthOptions{
		Secret:      a.Config.Auth.JWTSecret,
		Issuer:      a.Config.Auth.Issuer,
		AdminEmails: a.Config.Admin.Emails,
	}, a.Repo, a.Revocations, a.Log)
}

func (a *App) LastSeen() gin.HandlerFunc {
	return TouchLastSeen(a.Repo, a.RDB, a.Config.Auth.LastSeenThrottle, a.Log)
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.Log.Sync()
}
