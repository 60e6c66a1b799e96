// Package cli implements the dashprefs administration commands that operate
// on a SQLite customization database.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	dashprefs "github.com/goliatone/go-dashprefs"
	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

const (
	envDB     = "DASHPREFS_DB"
	envConfig = "DASHPREFS_CONFIG"
	defaultDB = "dashprefs.db"
	cliActor  = "dashprefs-cli"
)

type app struct {
	dbPath     string
	configPath string
	verbose    bool

	logger *zap.Logger
	config dashprefs.Config
}

// NewRootCommand builds the dashprefs command tree.
func NewRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "dashprefs",
		Short: "Inspect and maintain persisted dashboard customizations",
		Long: `dashprefs operates on the SQLite database that backs dashboard
customization stores.

The database and config paths default to $DASHPREFS_DB and $DASHPREFS_CONFIG.
A .env file in the working directory is read first when present.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "path to the customization database")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMigrateCommand(a),
		newImportCommand(a),
		newShowCommand(a),
		newRankCommand(a),
		newPruneCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	if a.dbPath == "" {
		a.dbPath = os.Getenv(envDB)
	}
	if a.dbPath == "" {
		a.dbPath = defaultDB
	}
	if a.configPath == "" {
		a.configPath = os.Getenv(envConfig)
	}

	if a.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}

	a.config = dashprefs.DefaultConfig()
	if a.configPath != "" {
		cfg, err := dashprefs.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.config = cfg
	}
	return nil
}

func (a *app) openDB() (*state.SQLiteStore, error) {
	db, err := state.OpenSQLite(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// activityHooks reports emitted events through the command logger.
func (a *app) activityHooks() activity.Hooks {
	return activity.Hooks{activity.HookFunc(func(_ context.Context, event activity.Event) error {
		a.logger.Info("activity",
			zap.String("verb", event.Verb),
			zap.String("object_id", event.ObjectID),
			zap.Any("metadata", event.Metadata))
		return nil
	})}
}

// withStore opens a loaded store for scope, runs fn and closes the store,
// writing any pending changes.
func (a *app) withStore(ctx context.Context, db state.Store, scope string, fn func(*dashprefs.Store) error) error {
	scope = strings.TrimSpace(scope)
	store := dashprefs.NewStore(scope, db,
		dashprefs.WithConfig(a.config),
		dashprefs.WithLogger(a.logger),
		dashprefs.WithActivityHooks(a.activityHooks()),
		dashprefs.WithActivityIdentity(cliActor, "", ""),
	)
	if err := store.EnsureLoaded(ctx); err != nil {
		_ = store.Close(ctx)
		return err
	}
	if err := store.LastError(); err != nil {
		_ = store.Close(ctx)
		return fmt.Errorf("load %q: %w", scope, err)
	}
	err := fn(store)
	if closeErr := store.Close(ctx); err == nil {
		err = closeErr
	}
	return err
}
