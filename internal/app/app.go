// Package app wires configuration, storage, clients, and services into
// the shared core used by cmd/chaintax-server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chaintax/chaintax/internal/clients/marketdata"
	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/interfaces"
	"github.com/chaintax/chaintax/internal/services/costbasis"
	"github.com/chaintax/chaintax/internal/services/matching"
	"github.com/chaintax/chaintax/internal/services/pricing"
	"github.com/chaintax/chaintax/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	MarketDataClient interfaces.MarketDataClient
	MatchingService  interfaces.MatchingService
	PricingService   interfaces.PricingService
	CostBasisService interfaces.CostBasisService
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is
// used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	config, err := common.LoadConfig(common.ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// resolve relative storage paths against the binary directory so the
	// deployment is self-contained
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(getBinaryDir(), config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app := NewAppWithStorage(config, logger, storageManager)
	app.StartupTime = startupStart

	logger.Info().
		Str("environment", config.Environment).
		Str("version", common.Version).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")
	return app, nil
}

// NewAppWithStorage wires services over an existing storage manager.
// Tests use it with the memory backend.
func NewAppWithStorage(config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager) *App {
	var marketClient interfaces.MarketDataClient
	if config.Clients.MarketData.APIKey != "" {
		opts := []marketdata.ClientOption{
			marketdata.WithLogger(logger.WithComponent("marketdata")),
			marketdata.WithTimeout(config.Clients.MarketData.GetTimeout()),
		}
		if config.Clients.MarketData.BaseURL != "" {
			opts = append(opts, marketdata.WithBaseURL(config.Clients.MarketData.BaseURL))
		}
		if config.Clients.MarketData.RateLimit > 0 {
			opts = append(opts, marketdata.WithRateLimit(config.Clients.MarketData.RateLimit))
		}
		marketClient = marketdata.NewClient(config.Clients.MarketData.APIKey, opts...)
	}

	return &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		MarketDataClient: marketClient,
		MatchingService:  matching.NewService(storageManager, matching.ConfigFrom(config.Matching), logger.WithComponent("matching")),
		PricingService:   pricing.NewService(storageManager, marketClient, logger.WithComponent("pricing")),
		CostBasisService: costbasis.NewService(storageManager, config.Jurisdiction, config.Variance, logger.WithComponent("costbasis")),
		StartupTime:      time.Now(),
	}
}

// Close releases storage resources.
func (a *App) Close() error {
	return a.Storage.Close()
}
