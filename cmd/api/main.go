package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpadp "vault-approval-service/internal/adapter/http"
	"vault-approval-service/internal/adapter/middleware"
	"vault-approval-service/internal/adapter/repository/mysql"
	"vault-approval-service/internal/config"
	"vault-approval-service/internal/domain/notification"
	"vault-approval-service/internal/infrastructure/cache"
	"vault-approval-service/internal/infrastructure/db"
	"vault-approval-service/internal/infrastructure/events"
	"vault-approval-service/internal/infrastructure/logging"
	"vault-approval-service/internal/infrastructure/mail"
	"vault-approval-service/internal/usecase/trustedparty"
	"vault-approval-service/internal/usecase/withdrawal"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	var mailer notification.Mailer = mail.NewLogMailer(logger)
	if cfg.MailServiceID != "" {
		mailer = mail.NewEmailJS(cfg.MailAPIURL, cfg.MailServiceID, cfg.MailPublicKey, cfg.MailTimeout)
	} else {
		logger.Warn("MAIL_SERVICE_ID not set; emails are logged only")
	}

	var publisher notification.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	withdrawals := mysql.NewWithdrawalRepository(gdb)
	parties := mysql.NewTrustedPartyRepository(gdb)

	withdrawalUC := withdrawal.NewUsecase(withdrawal.Deps{
		Withdrawals: withdrawals,
		Parties:     parties,
		UoW:         mysql.NewGormUoW(gdb),
		Mailer:      mailer,
		Events:      publisher,
		Limiter:     cache.NewAttemptLimiter(rdb, "approve", cfg.ApprovalMaxAttempts, cfg.ApprovalWindow, cfg.ApprovalLockout),
		Log:         logger,
	}, withdrawal.Policy{
		RequiredApprovals: cfg.RequiredApprovals,
		PublicBaseURL:     cfg.PublicBaseURL,
		ApprovalTemplate:  cfg.MailTemplateApproval,
		CompletedTemplate: cfg.MailTemplateCompleted,
		SendTimeout:       cfg.MailTimeout,
	})
	partyUC := trustedparty.NewUsecase(parties, mailer, publisher, trustedparty.Policy{
		PublicBaseURL:  cfg.PublicBaseURL,
		InviteTemplate: cfg.MailTemplateInvite,
		CodeTemplate:   cfg.MailTemplateCode,
		SendTimeout:    cfg.MailTimeout,
	}, logger)

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		return err
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.IPExtractor = httpadp.IPExtractor(proxies)
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.RequestLogger(logger))

	httpadp.Register(e, httpadp.Routes{
		Health: httpadp.NewHandler(
			httpadp.Check{Name: "mysql", Ping: sqlDB.PingContext},
			httpadp.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		),
		Withdrawals:    httpadp.NewWithdrawalHandler(withdrawalUC),
		TrustedParties: httpadp.NewTrustedPartyHandler(partyUC, logger),
		OwnerAuth:      middleware.OwnerAuth([]byte(cfg.JWTSecret)),
		Idempotency:    middleware.Idempotency(rdb, cfg.IdempotencyTTL(), logger),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := ":" + cfg.AppPort
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
