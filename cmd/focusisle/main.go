package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AbdessamadAe/FocusIsle/internal/api"
	"github.com/AbdessamadAe/FocusIsle/internal/archive"
	"github.com/AbdessamadAe/FocusIsle/internal/broadcast"
	"github.com/AbdessamadAe/FocusIsle/internal/clock"
	"github.com/AbdessamadAe/FocusIsle/internal/config"
	"github.com/AbdessamadAe/FocusIsle/internal/presence"
	"github.com/AbdessamadAe/FocusIsle/internal/reaper"
	"github.com/AbdessamadAe/FocusIsle/internal/stats"
	"github.com/AbdessamadAe/FocusIsle/internal/store"
	"github.com/AbdessamadAe/FocusIsle/internal/ws"
)

// Application wires every component in dependency order: store ->
// archive -> broadcast -> presence -> handlers -> background loops.
type Application struct {
	config     *config.Config
	store      *store.Store
	archive    *archive.Manager
	registry   *broadcast.Registry
	tracker    *presence.Tracker
	clock      *clock.Clock
	reaper     *reaper.Reaper
	httpServer *http.Server

	backgroundCancel context.CancelFunc
}

// NewApplication builds the application. The default session exists
// before the first connection is accepted.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	entityStore := store.New(cfg.Session.MessageCap)
	if _, err := entityStore.CreateSession(cfg.Session.DefaultID, cfg.Session.FocusLength, cfg.Session.BreakLength, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to create default session: %w", err)
	}

	archiveManager, err := archive.NewManager(cfg.Archive.Path, cfg.Archive.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat archive: %w", err)
	}

	registry := broadcast.NewRegistry()
	gateway := broadcast.NewGateway(registry)
	tracker := presence.NewTracker(entityStore, registry, gateway, archiveManager)

	aggregator := stats.New(entityStore)
	apiServer := api.NewServer(entityStore, aggregator, archiveManager, registry)
	wsHandler := ws.NewHandler(tracker, registry, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      entityStore,
		archive:    archiveManager,
		registry:   registry,
		tracker:    tracker,
		clock:      clock.New(entityStore, gateway, cfg.Session.PhaseTick),
		reaper:     reaper.New(entityStore, gateway, cfg.Session.SweepInterval, cfg.Session.InactivityThreshold),
		httpServer: httpServer,
	}, nil
}

// Start launches the background loops and the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting focusisle server on %s", app.httpServer.Addr)

	backgroundCtx, cancel := context.WithCancel(ctx)
	app.backgroundCancel = cancel
	go app.clock.Run(backgroundCtx)
	go app.reaper.Run(backgroundCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("focusisle server started")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop shuts down in reverse order: HTTP first so no new commands
// arrive, then the background loops, then the archive.
func (app *Application) Stop(ctx context.Context) error {
	log.Println("shutting down focusisle server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if app.backgroundCancel != nil {
		app.backgroundCancel()
	}
	if err := app.archive.Close(); err != nil {
		log.Printf("archive shutdown error: %v", err)
	}

	log.Println("shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// .env is optional; containerized deployments set real env vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.LoadConfigWithPrecedence(os.Getenv("FOCUSISLE_CONFIG_FILE"))

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("received signal %v, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return app.Stop(shutdownCtx)
	}
}
