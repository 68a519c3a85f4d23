package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/omnidesk/wababridge/internal/platform/config"
	"github.com/omnidesk/wababridge/internal/platform/database"
	"github.com/omnidesk/wababridge/internal/platform/logger"
	"github.com/omnidesk/wababridge/internal/platform/messagebroker"
	"github.com/omnidesk/wababridge/internal/wababridge/app"
	"github.com/omnidesk/wababridge/internal/wababridge/domain"
	"github.com/omnidesk/wababridge/internal/wababridge/gateway"
	"github.com/omnidesk/wababridge/internal/wababridge/media"
	repo "github.com/omnidesk/wababridge/internal/wababridge/repository/postgres"
	transport "github.com/omnidesk/wababridge/internal/wababridge/transport/http"
	"github.com/omnidesk/wababridge/internal/wababridge/transport/http/middleware"
)

const serviceName = "waba_bridge"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("waba bridge starting", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("connected to PostgreSQL")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("connected to NATS")

	channelRepo := repo.NewPgChannelRepository(dbPool, appLogger)
	contactRepo := repo.NewPgContactRepository(dbPool, appLogger)
	ticketRepo := repo.NewPgTicketRepository(dbPool, appLogger)
	messageRepo := repo.NewPgMessageRepository(dbPool, appLogger)

	newGateway := func(channel *domain.Channel) app.Gateway {
		return gateway.NewClient(gateway.Config{
			APIURL:      cfg.GupshupAPIURL,
			APIKey:      channel.APIKey,
			AppName:     channel.AppName,
			SourcePhone: channel.Number,
		}, appLogger, nil)
	}

	resolver := app.NewTicketResolver(ticketRepo, appLogger)
	correlator := app.NewAckCorrelator(messageRepo, appLogger)
	downloader := media.NewDownloader(appLogger, nil)
	mediaStore := media.NewDiskStore(cfg.MediaDir, appLogger)

	dispatcher := app.NewDispatcher(
		contactRepo, ticketRepo, resolver, messageRepo,
		correlator, downloader, mediaStore, natsClient, appLogger,
	)
	sendService := app.NewSendService(
		channelRepo, contactRepo, ticketRepo, messageRepo,
		natsClient, newGateway, appLogger,
	)

	webhookHandler := transport.NewWebhookHandler(channelRepo, dispatcher, appLogger)
	messageHandler := transport.NewMessageHandler(sendService, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Provider-facing webhooks: authenticated by per-channel token in the path.
	webhookHandler.RegisterRoutes(r)

	// Operator API: JWT bearer auth.
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Auth(cfg.JWTSecret, appLogger))
		messageHandler.RegisterRoutes(api)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("waba bridge exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("waba bridge stopped")
}
