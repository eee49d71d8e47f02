// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
	"github.com/runoshun/tracksync/internal/engine"
	"github.com/runoshun/tracksync/internal/infra/config"
	"github.com/runoshun/tracksync/internal/infra/crypto"
	"github.com/runoshun/tracksync/internal/infra/httpapi"
	"github.com/runoshun/tracksync/internal/infra/jsonstore"
	"github.com/runoshun/tracksync/internal/infra/logging"
	"github.com/runoshun/tracksync/internal/infra/realtime"
	"github.com/runoshun/tracksync/internal/infra/sqlitestore"
	"github.com/runoshun/tracksync/internal/session"
	"github.com/runoshun/tracksync/internal/usecase"
)

// sealedKeys are encrypted at rest when the store is encrypted.
var sealedKeys = []string{domain.KeyCredential, domain.KeyLoginSession}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Store            domain.KeyValueStore
	StoreInitializer domain.StoreInitializer
	Clock            domain.Clock
	ConfigLoader     domain.ConfigLoader
	ConfigManager    domain.ConfigManager
	Auth             domain.AuthAPI
	Entries          domain.TimeEntryAPI
	Reports          domain.ReportAPI
	Logger           domain.Logger

	// Components
	Credentials *session.CredentialStore
	Coordinator *session.Coordinator
	Realtime    *realtime.Client
	Pending     *engine.Pending
	Timer       *engine.Timer

	// Configuration
	Config *domain.Config

	closers []func() error
}

// Deps are the external dependencies a Container is assembled from.
// Tests substitute mocks; New builds the real ones.
type Deps struct {
	Store         domain.KeyValueStore
	Clock         domain.Clock
	Logger        domain.Logger
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	// Client is the raw HTTP client. Auth, Entries and Reports default to
	// implementations on top of it when nil.
	Client   *httpapi.Client
	Auth     domain.AuthAPI
	Entries  domain.TimeEntryAPI
	Reports  domain.ReportAPI
	Dialer   realtime.Dialer
	Location *time.Location
}

// New loads the configuration and builds a Container with real adapters.
// envFiles are optional .env files consulted for TRACKSYNC_* overrides.
func New(envFiles ...string) (*Container, error) {
	configLoader := config.NewLoader(envFiles...)
	appConfig, err := configLoader.Load()
	if err != nil {
		return nil, err
	}

	dataDir := config.DataDir(appConfig)
	logger := logging.New(dataDir, logging.ParseLevel(appConfig.Log.Level))
	for _, w := range appConfig.Warnings {
		logger.Warn("config", w)
	}

	var closers []func() error
	closers = append(closers, logger.Close)

	var store domain.KeyValueStore
	var storeInit domain.StoreInitializer
	path := domain.StorePath(dataDir, appConfig.Store.Backend)
	if appConfig.Store.Backend == domain.StoreSQLite {
		s := sqlitestore.New(path)
		store, storeInit = s, s
		closers = append(closers, s.Close)
	} else {
		s := jsonstore.New(path)
		store, storeInit = s, s
	}
	if err := storeInit.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	if appConfig.Store.Encrypt {
		key, err := crypto.LoadOrCreateKey(domain.KeyFilePath(dataDir))
		if err != nil {
			return nil, fmt.Errorf("load store key: %w", err)
		}
		enc, err := crypto.NewEncryptor(key)
		if err != nil {
			return nil, err
		}
		store = crypto.NewSealedStore(store, enc, sealedKeys...)
	}

	client, err := httpapi.NewClient(appConfig.API.BaseURL,
		domain.ParseDurationOr(appConfig.API.Timeout, domain.DefaultAPITimeout), logger)
	if err != nil {
		return nil, err
	}

	c := NewWithDeps(appConfig, Deps{
		Store:         store,
		Clock:         domain.RealClock{},
		Logger:        logger,
		ConfigLoader:  configLoader,
		ConfigManager: config.NewManager(),
		Client:        client,
		Dialer:        realtime.NewWSDialer(),
	})
	c.StoreInitializer = storeInit
	c.closers = closers
	return c, nil
}

// NewWithDeps assembles a Container from deps. Used by New and by tests.
func NewWithDeps(cfg *domain.Config, deps Deps) *Container {
	if cfg == nil {
		cfg = domain.NewDefaultConfig()
	}
	if deps.Clock == nil {
		deps.Clock = domain.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	creds := session.NewCredentialStore(deps.Store, deps.Logger)

	rt := realtime.NewClient(deps.Dialer, creds, deps.Logger, realtime.Options{
		URL:            cfg.Realtime.URL,
		ConnectTimeout: domain.ParseDurationOr(cfg.Realtime.ConnectTimeout, domain.DefaultConnectTimeout),
		InitialDelay:   domain.ParseDurationOr(cfg.Realtime.InitialDelay, domain.DefaultInitialDelay),
		MaxDelay:       domain.ParseDurationOr(cfg.Realtime.MaxDelay, domain.DefaultMaxDelay),
		MaxAttempts:    cfg.Realtime.MaxAttempts,
	})

	auth := deps.Auth
	if auth == nil && deps.Client != nil {
		auth = httpapi.NewAuthClient(deps.Client, deps.Clock)
	}

	coord := session.NewCoordinator(auth, creds, rt, deps.Clock, deps.Logger, session.CoordinatorOptions{
		Skew:    domain.ParseDurationOr(cfg.Session.RefreshSkew, domain.DefaultRefreshSkew),
		Timeout: domain.ParseDurationOr(cfg.Session.RefreshTimeout, domain.DefaultRefreshTimeout),
	})

	entries, reports := deps.Entries, deps.Reports
	if deps.Client != nil && (entries == nil || reports == nil) {
		api := httpapi.NewAPI(httpapi.NewGateway(deps.Client, creds, coord, deps.Logger))
		if entries == nil {
			entries = api
		}
		if reports == nil {
			reports = api
		}
	}

	pending := engine.NewPending(entries, reports, deps.Logger, deps.Location)
	timer := engine.NewTimer(deps.Store, entries, pending, deps.Clock, deps.Logger)

	var storeInit domain.StoreInitializer
	if si, ok := deps.Store.(domain.StoreInitializer); ok {
		storeInit = si
	}

	return &Container{
		Store:            deps.Store,
		StoreInitializer: storeInit,
		Clock:            deps.Clock,
		ConfigLoader:     deps.ConfigLoader,
		ConfigManager:    deps.ConfigManager,
		Auth:             auth,
		Entries:          entries,
		Reports:          reports,
		Logger:           deps.Logger,
		Credentials:      creds,
		Coordinator:      coord,
		Realtime:         rt,
		Pending:          pending,
		Timer:            timer,
		Config:           cfg,
	}
}

// Close releases the store and the log file.
func (c *Container) Close() error {
	c.Realtime.Disconnect()
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UseCase factory methods

// RequestLoginUseCase returns a new RequestLogin use case.
func (c *Container) RequestLoginUseCase() *usecase.RequestLogin {
	return usecase.NewRequestLogin(c.Auth, c.Credentials)
}

// VerifyLoginUseCase returns a new VerifyLogin use case.
func (c *Container) VerifyLoginUseCase() *usecase.VerifyLogin {
	return usecase.NewVerifyLogin(c.Auth, c.Credentials, c.Coordinator)
}

// LogoutUseCase returns a new Logout use case.
func (c *Container) LogoutUseCase() *usecase.Logout {
	return usecase.NewLogout(c.Auth, c.Credentials, c.Timer, c.Realtime, c.Logger)
}

// ListProjectsUseCase returns a new ListProjects use case.
func (c *Container) ListProjectsUseCase() *usecase.ListProjects {
	return usecase.NewListProjects(c.Entries, c.Store, c.Logger)
}

// StartTimerUseCase returns a new StartTimer use case.
func (c *Container) StartTimerUseCase() *usecase.StartTimer {
	return usecase.NewStartTimer(c.Timer, c.ListProjectsUseCase())
}

// StopTimerUseCase returns a new StopTimer use case.
func (c *Container) StopTimerUseCase() *usecase.StopTimer {
	return usecase.NewStopTimer(c.Timer)
}

// SubmitPendingUseCase returns a new SubmitPending use case.
func (c *Container) SubmitPendingUseCase() *usecase.SubmitPending {
	return usecase.NewSubmitPending(c.Pending, c.Timer, c.Logger)
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager, c.ConfigLoader)
}

// InitConfigUseCase returns a new InitConfig use case.
func (c *Container) InitConfigUseCase() *usecase.InitConfig {
	return usecase.NewInitConfig(c.ConfigManager)
}
