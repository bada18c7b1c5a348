package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatmatch/internal/api"
	"chatmatch/internal/config"
	"chatmatch/internal/database"
	"chatmatch/internal/hub"
	"chatmatch/internal/lifecycle"
	"chatmatch/internal/matchmaker"
	"chatmatch/internal/registry"
	"chatmatch/internal/relay"
	"chatmatch/internal/session"
	"chatmatch/internal/websocket"
	pkgdatabase "chatmatch/pkg/database"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Application coordinates all system components.
// Initialization order: Stats store → Sessions → Registry → Matchmaker/Relay/Lifecycle → Hub → HTTP
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	store      *database.Store
	sessions   *session.Manager
	registry   *registry.Registry
	messageHub *hub.Hub
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewApplication creates a new application instance with all components initialized
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Interface values stay nil unless the store is enabled
	var (
		store    *database.Store
		recorder interfaces.StatsRecorder
		stats    interfaces.StatsStore
	)
	if cfg.Database.Enabled {
		var err error
		store, err = database.NewStore(pkgdatabase.DefaultConfig(cfg.Database.Path), cfg.Database.Timeout, logger.Named("stats"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize statistics store: %w", err)
		}
		recorder, stats = store, store
		logger.Info("statistics store enabled", zap.String("path", cfg.Database.Path))
	}

	sessions := session.NewManager(recorder, logger.Named("session"))
	reg := registry.NewRegistry()

	policy := types.RegistrationPolicy{
		DefaultInterest: cfg.Matching.DefaultInterest,
		MaxInterests:    cfg.Matching.MaxInterests,
	}
	messageHub := hub.NewHub(hub.Components{
		Registry: reg,
		Matchmaker: matchmaker.NewMatchmaker(reg, sessions, matchmaker.Options{
			Policy:          policy,
			GenerateUserIDs: cfg.Matching.GenerateUserIDs,
		}, logger.Named("matchmaker")),
		Relay:     relay.NewRelay(reg, logger.Named("relay")),
		Lifecycle: lifecycle.NewManager(reg, sessions, cfg.Matching.PartnerDisconnectedMessage, logger.Named("lifecycle")),
		Sessions:  sessions,
	}, hub.Options{WelcomeMessage: cfg.Matching.WelcomeMessage}, logger.Named("hub"))

	wsHandler, err := websocket.NewHandler(messageHub, websocket.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		BufferSize:     cfg.WebSocket.BufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger.Named("websocket"))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("failed to initialize websocket handler: %w", err)
	}

	apiServer := api.NewServer(stats, reg, cfg.HTTP.AllowedOrigins, logger.Named("api"))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		store:      store,
		sessions:   sessions,
		registry:   reg,
		messageHub: messageHub,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start begins application execution. The hub starts first so that no
// connection is accepted before events can be processed. Once the listener
// is bound, Start succeeds even if ctx is cancelled; Stop releases everything.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting chatmatch", zap.String("addr", app.httpServer.Addr))

	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.messageHub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.mu.Lock()
	app.listener = listener
	app.mu.Unlock()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.messageHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("chatmatch started", zap.String("addr", listener.Addr().String()))
		return nil
	case <-ctx.Done():
		// The server is up; a cancellation now is a shutdown request and the
		// caller is expected to follow it with Stop.
		app.logger.Info("chatmatch started, shutdown already requested", zap.String("addr", listener.Addr().String()))
		return nil
	}
}

// Stop shuts down in reverse dependency order: HTTP → Hub → Stats store.
// Stopping the hub closes every remaining connection and records their
// sessions as ended before the store drains.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down chatmatch")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		app.logger.Warn("message hub shutdown error", zap.Error(err))
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Warn("statistics store shutdown error", zap.Error(err))
		}
	}

	app.logger.Info("chatmatch shutdown complete")
	return nil
}

// GetAddr returns the bound listener address once started, or the configured one
func (app *Application) GetAddr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Stats returns live connection counts
func (app *Application) Stats() map[string]int {
	return app.registry.GetStats()
}
