// Package root contains the root command and the shared application wiring
// used by every subcommand.
package root

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/internal/config"
	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/projection"
	"fjacquet/budget-recon/internal/reconcile"
	"fjacquet/budget-recon/internal/report"
	"fjacquet/budget-recon/internal/store"
)

var (
	// Log is the shared logger instance for commands.
	Log = logrus.New()
	// Cfg is the loaded configuration, available after PersistentPreRun.
	Cfg *config.Config

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "budget-recon",
		Short: "Track recurring budget items and reconcile them against bank statements.",
		Long: `budget-recon projects recurring budget items (rent, salary,
subscriptions) over a date window and reconciles imported bank
transactions against them: high-confidence matches are linked
automatically, plausible ones become suggestions for review.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(Log)
			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = config.ConfigureLoggingFromConfig(cfg)
			return nil
		},
	}
)

// App bundles the wired dependencies a subcommand needs. Close releases
// the database.
type App struct {
	DB           *sql.DB
	Store        *store.SQLiteStore
	Projector    *projection.Projector
	Orchestrator *reconcile.Orchestrator
	Reporter     *report.Reporter
	Logger       logging.Logger
}

// OpenApp opens the ledger database and wires the application graph.
func OpenApp() (*App, error) {
	logger := logging.NewLogrusAdapterFromLogger(Log)

	path := Cfg.Data.DatabaseFile
	if Cfg.Data.Directory != "" {
		if err := os.MkdirAll(Cfg.Data.Directory, 0750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		path = filepath.Join(Cfg.Data.Directory, Cfg.Data.DatabaseFile)
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	s := store.NewSQLiteStore(db, logger)
	projector := projection.New(s, s, s, logger)
	orchestrator, err := reconcile.New(projector, s, s, Cfg.Tolerances(), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &App{
		DB:           db,
		Store:        s,
		Projector:    projector,
		Orchestrator: orchestrator,
		Reporter:     report.New(s, s, projector, logger),
		Logger:       logger,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() {
	_ = a.DB.Close()
}

// CategoriesPath resolves the categories YAML file against the data
// directory.
func CategoriesPath() string {
	if Cfg.Data.Directory != "" && !filepath.IsAbs(Cfg.Data.CategoriesFile) {
		return filepath.Join(Cfg.Data.Directory, Cfg.Data.CategoriesFile)
	}
	return Cfg.Data.CategoriesFile
}
