package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/fwchecks/internal/adapter/driven/ciservice"
	githubadapter "github.com/ericfisherdev/fwchecks/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/fwchecks/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/fwchecks/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/fwchecks/internal/adapter/driving/web"
	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/config"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
	"github.com/ericfisherdev/fwchecks/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_url", cfg.APIURL,
		"poll_interval", cfg.PollInterval,
		"fetch_rate", cfg.FetchRate,
		"retention", cfg.ChangeRetention,
		"github_mirror", cfg.HasGitHubMirror(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Wire stores.
	changeStore := sqliteadapter.NewChangeRepo(db)
	runStore := sqliteadapter.NewRunRepo(db)
	credentialStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	if cfg.SecretKey == nil {
		slog.Warn("FWCHECKS_SECRET_KEY not set, CI credentials cannot be stored")
	}

	// 5. Create the CI client. A stored token takes priority over the env var;
	// without either, checks are read anonymously until credentials are provided.
	authClient, err := ciservice.NewClient(cfg.APIURL, "")
	if err != nil {
		return err
	}
	newCIClient := func(token string) driven.CIClient {
		c, err := ciservice.NewClient(cfg.APIURL, token)
		if err != nil {
			slog.Error("create CI client failed", "error", err)
			return nil
		}
		return c
	}

	var ciClient driven.CIClient
	if token := application.StartupToken(ctx, credentialStore, cfg.CIToken); token != "" {
		ciClient = newCIClient(token)
		slog.Info("CI client created")
	} else {
		slog.Info("no CI token configured, reading public job requests anonymously")
	}
	clients := application.NewCIClientProvider(ciClient)
	clients.SetFallback(newCIClient(""))

	// 6. Optional GitHub commit status mirror.
	var publisher driven.StatusPublisher
	if cfg.HasGitHubMirror() {
		p, err := githubadapter.NewPublisher(cfg.GitHubToken, cfg.GitHubRepo)
		if err != nil {
			return err
		}
		publisher = p
		slog.Info("github status mirror enabled", "repo", cfg.GitHubRepo)
	}

	// 7. Application services.
	m := metrics.New()
	checkSvc := application.NewCheckService(clients, application.LinkConfig{
		UIBaseURL: cfg.UIURL,
		DocsURL:   cfg.DocsURL,
		LabelName: cfg.LabelName,
	})
	statusSvc := application.NewStatusService(changeStore, runStore)
	credentialSvc := application.NewCredentialService(credentialStore, clients, authClient, newCIClient)

	pollSvc := application.NewPollService(checkSvc, changeStore, runStore, publisher, m, application.PollConfig{
		Interval:  cfg.PollInterval,
		Retention: cfg.ChangeRetention,
		FetchRate: cfg.FetchRate,
	})
	go pollSvc.Start(ctx)

	// 8. HTTP API, dashboard and metrics on one mux.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(
		checkSvc,
		statusSvc,
		changeStore,
		pollSvc,
		credentialSvc,
		clients,
		httphandler.PluginConfig{PollInterval: cfg.PollInterval},
		slog.Default(),
	)
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(changeStore, statusSvc, pollSvc, clients, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	mux.Handle("GET /metrics", m.Handler())

	handler := httphandler.ApplyMiddleware(mux, slog.Default(), m)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("fwchecks started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
