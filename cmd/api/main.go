package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/jorsalda/permisos-auth-core/internal/account"
	accountrepo "github.com/jorsalda/permisos-auth-core/internal/account/repo"
	"github.com/jorsalda/permisos-auth-core/internal/mailer"
	"github.com/jorsalda/permisos-auth-core/internal/router"
	"github.com/jorsalda/permisos-auth-core/internal/token"
	"github.com/jorsalda/permisos-auth-core/pkg/database"
	"github.com/jorsalda/permisos-auth-core/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting permisos-auth-core")

	// the signing secret is required; refusing to start beats running with
	// a weak default
	tokenCfg, err := token.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("token config: %v", err)
	}

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	// wrap with sqlx for convenience in repos/services; closing the sqlx
	// handle closes the underlying *sql.DB
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	repo := accountrepo.NewAccountRepo(sqlxDB)
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repo.EnsureTable(bootCtx); err != nil {
		bootCancel()
		sugar.Fatalf("ensure tables: %v", err)
	}
	bootCancel()

	mailCfg := mailer.ConfigFromEnv()
	var sender mailer.Sender
	if mailCfg.APIKey != "" {
		sender = mailer.NewResendSender(mailCfg)
	} else {
		sugar.Warn("RESEND_API_KEY not set, reset links will only be logged")
		sender = mailer.NewLogSender(sugar, mailCfg)
	}

	svc := account.NewService(repo, nil, token.NewService(tokenCfg), sender, sugar)
	sessions := account.NewSessionCodec(tokenCfg.Secret)
	handler := account.NewHandler(svc, sessions, sugar)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router.RegisterRoutes(sugar, handler, svc),
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
