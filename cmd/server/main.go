package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/api"
	"github.com/bodhgriha/marketplace/internal/app"
	"github.com/bodhgriha/marketplace/internal/app/maintenance"
	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/cache"
	"github.com/bodhgriha/marketplace/internal/content"
	"github.com/bodhgriha/marketplace/internal/database"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/realtime"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bodhgriha-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	if strings.EqualFold(os.Getenv("GIN_DEBUG"), "true") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	dbStore := cache.NewDatabaseStore(db)

	var store cache.Store = dbStore
	var janitor maintenance.CacheJanitor = dbStore
	var redisStore *cache.RedisStore
	if cfg.Cache.Redis.Enabled {
		redisStore, err = cache.NewRedisStore(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TLS:      cfg.Cache.Redis.TLS,
			Timeout:  cfg.Cache.Redis.Timeout,
		})
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			store = redisStore
			janitor = nil // redis entries expire on their own
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	defer func() {
		if redisStore != nil {
			_ = redisStore.Close()
		}
	}()

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{TokenLength: cfg.Auth.Session.TokenLength})
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	credentials, err := iauth.NewCredentialService(db, sessions)
	if err != nil {
		return fmt.Errorf("initialise credential service: %w", err)
	}

	totpOpts := []mfa.Option{
		mfa.WithIssuer(cfg.Auth.TOTP.Issuer),
		mfa.WithRecoveryCodeCount(cfg.Auth.TOTP.RecoveryCodes),
	}
	if cfg.Auth.TOTP.Lockout.Enabled {
		totpOpts = append(totpOpts, mfa.WithLockoutPolicy(cfg.Auth.TOTP.Lockout.Threshold, cfg.Auth.TOTP.Lockout.Duration))
	}
	totp, err := mfa.NewTOTPService(db, []byte(cfg.Auth.EncryptionKey), totpOpts...)
	if err != nil {
		return fmt.Errorf("initialise totp service: %w", err)
	}

	login, err := iauth.NewLoginService(db, credentials, sessions, totp)
	if err != nil {
		return fmt.Errorf("initialise login service: %w", err)
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	cleaner := maintenance.NewCleaner(sessions, janitor, audit)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	loader := loadContent(cfg, log)

	router, err := api.NewRouter(api.Deps{
		DB:          db,
		Config:      cfg,
		Credentials: credentials,
		Sessions:    sessions,
		Login:       login,
		TOTP:        totp,
		Cache:       store,
		RateStore:   middleware.NewCacheRateStore(store),
		Hub:         realtime.NewHub(),
		Content:     loader,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// loadContent tolerates a missing content directory so the API can run
// without the marketing pages provisioned.
func loadContent(cfg *app.Config, log *zap.Logger) *content.Loader {
	dir := strings.TrimSpace(cfg.Content.Dir)
	if dir == "" {
		return nil
	}
	loader, err := content.NewLoader(dir)
	if err != nil {
		log.Warn("content directory unavailable; content routes disabled", zap.Error(err))
		return nil
	}
	return loader
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	if email := strings.TrimSpace(cfg.Admin.Email); email != "" {
		if err := database.EnsureAdmin(db, email, cfg.Admin.Password); err != nil {
			return nil, fmt.Errorf("ensure admin account: %w", err)
		}
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", cfg.DatabaseConfig().Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
