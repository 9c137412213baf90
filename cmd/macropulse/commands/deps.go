package commands

import (
	"fmt"

	"macropulse/internal/cache"
	"macropulse/internal/external/fred"
	"macropulse/internal/external/yahoo"
	"macropulse/internal/indicator"
	"macropulse/internal/snapshot"
	"macropulse/pkg/config"
	"macropulse/pkg/database"
	"macropulse/pkg/httputil"
	"macropulse/pkg/logger"
)

// deps bundles the wired-up application components shared by the commands.
type deps struct {
	cfg       *config.Config
	logger    *logger.Logger
	service   *indicator.Service
	snapshots *snapshot.Repository // nil when the database is disabled
	db        *database.DB         // nil when the database is disabled
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
}

// initDeps loads config and builds the indicator service stack.
func initDeps() (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Create HTTP client with the FRED rate limit
	httpClient := httputil.New(cfg, log).WithRateLimit(cfg.FRED.RateLimit)

	// 4. Create external API clients
	fredClient := fred.NewClient(cfg, httpClient, log)
	yahooClient := yahoo.NewClient(cfg, httpClient, log)

	// 5. Create the two-tier cache
	cacheManager, err := cache.NewManager(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	// 6. Create indicator service
	service := indicator.NewService(cfg, fredClient, yahooClient, cacheManager, log)

	d := &deps{
		cfg:     cfg,
		logger:  log,
		service: service,
	}

	// 7. Connect to database (optional)
	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.db = db
		d.snapshots = snapshot.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	return d, nil
}
