package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/identity"
	"storefront/internal/localstore"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/pkg/blob"
	"storefront/pkg/database"
	"storefront/pkg/logger"
	"storefront/pkg/redis"
)

// cooldownTick is the resolution of the resend countdown
const cooldownTick = time.Second

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Local       *localstore.Store
	RedisClient *redis.Client
	DB          *sql.DB
	Store       store.Store
	Repos       *repository.Repositories

	Auth     *identity.Auth
	Gate     *session.Gate
	Resolver *session.Resolver
	Services *service.Services
}

// New creates a new dependency injection container. Nothing is started.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}
	database.SetLogger(log)

	local, err := localstore.Open(ctx, cfg.LocalStorePath)
	if err != nil {
		return nil, err
	}
	c.Local = local

	if err := c.openStore(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Repos = repository.NewRepositories(c.Store)

	provider := identity.NewRESTClient(cfg.IdentityBaseURL, cfg.TokenBaseURL, cfg.BackendAPIKey, log)
	c.Auth = identity.NewAuth(provider, local, log)
	c.Gate = session.NewGate(provider, c.Repos.Profile, session.NewPendingCache(local),
		session.NewCooldown(cfg.ResendCooldown, cooldownTick),
		session.GateConfig{
			PollInterval: cfg.VerifyPollInterval,
			PendingTTL:   cfg.PendingVerificationTTL,
			RedirectURL:  cfg.VerifyRedirectURL,
		}, log)

	var google *identity.GoogleSignIn
	if cfg.GoogleEnabled() {
		google = identity.NewGoogleSignIn(identity.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, provider, log)
		log.Info("Google sign-in enabled")
	}

	var images service.ImageSigner
	if cfg.BlobEnabled() {
		signer, err := blob.New(ctx, blob.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			TTL:       cfg.S3PresignTTL,
		})
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		images = signer
		log.WithField("bucket", cfg.S3Bucket).Info("Product image uploads enabled")
	}

	catalog := service.NewCatalogService(c.Repos.Product, log)
	c.Services = &service.Services{
		Catalog: catalog,
		Cart:    service.NewCartService(c.Repos.Cart, catalog, local, log),
		Profile: service.NewProfileService(c.Repos.Profile, cfg.AdminEmail, log),
		Admin:   service.NewAdminService(c.Repos, catalog, images, log),
	}

	c.Resolver = session.NewResolver(session.Deps{
		Auth:              c.Auth,
		Gate:              c.Gate,
		Google:            google,
		Profiles:          c.Repos.Profile,
		Usernames:         c.Repos.Username,
		State:             session.NewState(cfg.NotificationTTL),
		Initializers:      c.Services.Initializers(),
		AdminEmail:        cfg.AdminEmail,
		VerifyRedirectURL: cfg.VerifyRedirectURL,
	}, log)

	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	switch c.Config.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Open(ctx, c.Config.DatabaseURL)
		if err != nil {
			return err
		}
		c.DB = db
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
		c.Store = store.NewPostgresStore(db, c.Logger)
		c.Logger.Info("Using Postgres key-value store")
	case config.StoreBackendRedis:
		client, err := redis.NewClient(c.Config.RedisURL, c.Config.RedisKeyPrefix, c.Logger.Logger)
		if err != nil {
			return err
		}
		c.RedisClient = client
		c.Store = store.NewRedisStore(client, c.Logger)
		c.Logger.Info("Using Redis key-value store")
	default:
		return fmt.Errorf("unsupported store backend %q", c.Config.StoreBackend)
	}
	return nil
}

// Start restores the persisted session and begins resolving identity changes
func (c *Container) Start(ctx context.Context) {
	c.Auth.Start(ctx)
	if err := c.Auth.Restore(ctx); err != nil {
		c.Logger.WithError(err).Warn("Persisted session could not be restored")
	}
	c.Resolver.Start(ctx)
	c.Resolver.Settle(ctx)
}

// Stop halts the resolver, the verification gate and identity notifications
func (c *Container) Stop() {
	if c.Resolver != nil {
		c.Resolver.Stop()
	}
	if c.Gate != nil {
		c.Gate.Close()
	}
	if c.Auth != nil {
		c.Auth.Stop()
	}
}

// Close releases storage connections
func (c *Container) Close() error {
	var errs []error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if c.Local != nil {
		if err := c.Local.Close(); err != nil {
			errs = append(errs, fmt.Errorf("local store close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// State is the session state owned by the resolver
func (c *Container) State() *session.State {
	return c.Resolver.State()
}
