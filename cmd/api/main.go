package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medvault/medvault-api/internal/config"
	"github.com/medvault/medvault-api/internal/email"
	"github.com/medvault/medvault-api/internal/handler"
	auditHandler "github.com/medvault/medvault-api/internal/handler/audit"
	authHandler "github.com/medvault/medvault-api/internal/handler/auth"
	fileHandler "github.com/medvault/medvault-api/internal/handler/file"
	keypairHandler "github.com/medvault/medvault-api/internal/handler/keypair"
	notificationHandler "github.com/medvault/medvault-api/internal/handler/notification"
	shareHandler "github.com/medvault/medvault-api/internal/handler/share"
	"github.com/medvault/medvault-api/internal/middleware"
	"github.com/medvault/medvault-api/internal/otp"
	"github.com/medvault/medvault-api/internal/repository/postgres"
	"github.com/medvault/medvault-api/internal/router"
	auditService "github.com/medvault/medvault-api/internal/service/audit"
	authService "github.com/medvault/medvault-api/internal/service/auth"
	fileService "github.com/medvault/medvault-api/internal/service/file"
	keypairService "github.com/medvault/medvault-api/internal/service/keypair"
	notificationService "github.com/medvault/medvault-api/internal/service/notification"
	shareService "github.com/medvault/medvault-api/internal/service/share"
	"github.com/medvault/medvault-api/internal/storage"
	"github.com/medvault/medvault-api/pkg/auth"
	"github.com/medvault/medvault-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	blobs, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	masterKey, err := parseMasterKey(cfg.Security.MasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid master key")
	}
	wrapper, err := security.NewMasterKeyWrapper(masterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize key wrapper")
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	keyPairRepo := postgres.NewKeyPairRepository(db)
	connRepo := postgres.NewConnectionRepository(db)
	fileRepo := postgres.NewFileRepository(db)
	shareRepo := postgres.NewShareRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	biometricRepo := postgres.NewBiometricRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	auditSvc := auditService.NewService(auditRepo)
	notificationSvc := notificationService.NewService(notificationRepo, userRepo)
	emailSvc := email.NewSMTPService(cfg.SMTP)
	otpStore := otp.NewStore()
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	authSvc := authService.NewService(userRepo, biometricRepo, otpStore, emailSvc, hasher, jwtSvc, auditSvc)
	keypairSvc := keypairService.NewService(keyPairRepo, connRepo, userRepo, outboxRepo, wrapper, auditSvc)
	fileSvc := fileService.NewService(fileRepo, shareRepo, userRepo, outboxRepo, blobs, cfg.Storage.Bucket, auditSvc)
	shareSvc := shareService.NewService(shareRepo, fileRepo, userRepo, connRepo, outboxRepo, notificationSvc, auditSvc)

	r := router.NewRouter(
		authHandler.NewHandler(authSvc),
		keypairHandler.NewHandler(keypairSvc),
		fileHandler.NewHandler(fileSvc, shareSvc, cfg.Cleanup.OutdatedDays),
		shareHandler.NewHandler(shareSvc),
		notificationHandler.NewHandler(notificationSvc),
		auditHandler.NewHandler(auditSvc),
		handler.NewHandler(db),
		router.RouterConfig{
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			CORSConfig:       corsConfig(cfg.CORS),
			MetricsPrefix:    "medvault_api",
			RequestTimeout:   30 * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

// parseMasterKey accepts the wrapping key as 64 hex characters or a raw
// 32-byte string.
func parseMasterKey(key string) ([]byte, error) {
	if len(key) == 2*security.SymmetricKeySize {
		if decoded, err := hex.DecodeString(key); err == nil {
			return decoded, nil
		}
	}
	if len(key) != security.SymmetricKeySize {
		return nil, fmt.Errorf("master key must be %d bytes or %d hex characters",
			security.SymmetricKeySize, 2*security.SymmetricKeySize)
	}
	return []byte(key), nil
}

func corsConfig(cfg config.CORSConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		c.AllowMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		c.AllowHeaders = cfg.AllowedHeaders
	}
	return c
}
