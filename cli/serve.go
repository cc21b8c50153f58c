package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/engine/auth"
	"github.com/taskgate/taskgate/engine/cache"
	"github.com/taskgate/taskgate/engine/capture"
	"github.com/taskgate/taskgate/engine/content"
	"github.com/taskgate/taskgate/engine/gateway/router"
	"github.com/taskgate/taskgate/engine/gateway/uc"
	"github.com/taskgate/taskgate/engine/infra/postgres"
	"github.com/taskgate/taskgate/engine/provider"
	"github.com/taskgate/taskgate/engine/task"
	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd starts the HTTP gateway.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the AI task gateway server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Output: os.Stdout,
		JSON:   cfg.Log.JSON,
	})
	ctx = logger.ContextWithLogger(ctx, log)

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations")
		if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	store, err := postgres.NewStore(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	handler, err := buildHandler(cfg, store)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.Register(engine)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
		// Carry the process logger into every request context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-signalCtx.Done():
	}

	log.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildHandler(cfg *config.Config, store *postgres.Store) (*router.Handler, error) {
	repo, err := content.NewRepository(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("opening content root: %w", err)
	}

	resolver := provider.NewResolver(
		postgres.NewProviderRepo(store.DB()),
		provider.SystemCredentials{APIKey: cfg.Provider.APIKey, Model: cfg.Provider.Model},
	)
	factoryCfg := &provider.FactoryConfig{GeminiBaseURL: cfg.Provider.BaseURL}

	exec := uc.NewExecuteTask(
		task.NewLoader(repo),
		resolver,
		func(creds *provider.Credentials) (provider.Adapter, error) {
			return provider.NewAdapter(creds, factoryCfg)
		},
		cache.NewService(postgres.NewCacheRepo(store.DB())),
		capture.NewExecutor(postgres.NewCaptureStore(store.DB())),
	)

	verifier := auth.NewHTTPVerifier(cfg.Auth.BaseURL, cfg.Auth.APIKey)
	return router.NewHandler(exec, verifier, store.Health), nil
}
