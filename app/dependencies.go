package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/llm-chat-gateway/config"
	"github.com/upb/llm-chat-gateway/handlers"
	"github.com/upb/llm-chat-gateway/internal/observability"
	"github.com/upb/llm-chat-gateway/middleware"
	"github.com/upb/llm-chat-gateway/repositories"
	"github.com/upb/llm-chat-gateway/repositories/postgres"
	"github.com/upb/llm-chat-gateway/repositories/yamlfile"
	"github.com/upb/llm-chat-gateway/services/chat"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/providers/catalog"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/transport"
	"go.uber.org/zap"
)

const modelCacheSweepInterval = 10 * time.Minute

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory, nil when credentials live in a file
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Credentials repositories.CredentialRepository

	// Secrets
	Vault   *secrets.MemoryVault
	Secrets secrets.Resolver

	// Provider pipeline
	Transport transport.Transport
	Bus       *transport.Bus
	Registry  *providers.Registry
	Metrics   *observability.UsageMetrics
	Chat      *chat.Manager

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	stopSweep chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	deps.initSecrets(cfg)

	if err := deps.initTransport(cfg); err != nil {
		_ = deps.closeStore()
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	deps.initChat(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("credential_store", cfg.Credentials.Store),
		zap.String("transport", cfg.Transport.Mode),
		zap.Int("providers", len(deps.Registry.IDs())))
	return deps, nil
}

// initStore opens the credential repository selected by configuration
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Credentials.Store == config.CredentialStoreFile {
		store, err := yamlfile.NewStore(cfg.Credentials.File, d.Logger)
		if err != nil {
			return err
		}
		d.Credentials = store
		d.Logger.Info("using file credential store", zap.String("path", store.Path()))
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = d.closeStore()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Credentials.InitSchema {
		if err := factory.InitSchema(ctx); err != nil {
			_ = d.closeStore()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	d.Credentials = factory.NewRepositories().Credentials

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initSecrets chains the environment resolver in front of the in-memory vault
func (d *Dependencies) initSecrets(cfg *config.Config) {
	d.Vault = secrets.NewMemoryVault()
	d.Secrets = secrets.Chain{
		secrets.NewEnvResolver(cfg.Secrets.EnvPrefix),
		d.Vault,
	}
}

func (d *Dependencies) initTransport(cfg *config.Config) error {
	client := &http.Client{Timeout: cfg.Transport.Timeout}

	switch cfg.Transport.Mode {
	case config.TransportDirect:
		d.Transport = transport.NewDirect(client, d.Logger)
	case config.TransportDelegated:
		d.Bus = transport.NewBus()
		host := transport.NewLocalHost(client, d.Bus, cfg.Transport.ChunkSize, d.Logger)
		d.Transport = transport.NewDelegated(host, d.Bus, d.Logger)
	default:
		return fmt.Errorf("unknown transport mode %q", cfg.Transport.Mode)
	}
	return nil
}

func (d *Dependencies) initChat(cfg *config.Config) {
	d.Registry = catalog.New()
	d.Metrics = observability.NewUsageMetrics()

	cache := chat.NewModelCache(cfg.Models.CacheSize, cfg.Models.CacheTTL)
	d.stopSweep = make(chan struct{})
	go cache.StartCleanupWorker(modelCacheSweepInterval, d.stopSweep)

	d.Chat = chat.NewManager(d.Registry, providers.Deps{
		Transport: d.Transport,
		Secrets:   d.Secrets,
		Logger:    d.Logger,
	}, d.Logger,
		chat.WithModelCache(cache),
		chat.WithMetrics(d.Metrics))
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("AUTH_JWT_SECRET not set, API authentication disabled")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token authentication enabled")
}

// ReadinessChecks returns the probes served by /readyz
func (d *Dependencies) ReadinessChecks() []handlers.ReadinessCheck {
	checks := []handlers.ReadinessCheck{{
		Name: "credentials",
		Probe: func(ctx context.Context) error {
			_, err := d.Credentials.List(ctx)
			return err
		},
	}}
	if d.DB != nil {
		checks = append(checks, handlers.DatabaseCheck(d.DB.DB))
	}
	return checks
}

func (d *Dependencies) closeStore() error {
	if d.RepoFactory == nil {
		return nil
	}
	err := d.RepoFactory.Close()
	d.RepoFactory = nil
	d.DB = nil
	return err
}

// Close gracefully shuts down all dependencies. It is safe to call twice.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopSweep != nil {
		close(d.stopSweep)
		d.stopSweep = nil
	}

	if d.RepoFactory != nil {
		if err := d.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
