package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"db-sync/internal/conn"
	"db-sync/internal/engine"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	timeout time.Duration

	// Log is configured in PersistentPreRunE.
	Log = zerolog.Nop()
)

var RootCmd = &cobra.Command{
	Use:   "db-sync",
	Short: "Schema sync, backup and restore for the signing database",
	Long: `
  ____  ____     ______   ___   _  ____
 |  _ \| __ )   / ___\ \ / / \ | |/ ___|
 | | | |  _ \   \___ \\ V /|  \| | |
 | |_| | |_) |   ___) || | | |\  | |___
 |____/|____/   |____/ |_| |_| \_|\____|

DB SYNC - keeps the live database in line with the schema file.
Run without a command to create the database (if needed) and sync it.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(level).
			With().Timestamp().Logger()
		if f := viper.ConfigFileUsed(); f != "" {
			Log.Debug().Str("file", f).Msg("Using config file")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-sync.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every executed statement")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort the operation after this long (0 = no limit)")
	RootCmd.PersistentFlags().String("schema", "", "schema file to sync from")
	RootCmd.PersistentFlags().String("backup-dir", "", "directory for backup files")

	viper.BindPFlag("schema_file", RootCmd.PersistentFlags().Lookup("schema"))
	viper.BindPFlag("backup_dir", RootCmd.PersistentFlags().Lookup("backup-dir"))

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.user", "root")
	viper.SetDefault("schema_file", "database.sql")
	viper.SetDefault("backup_dir", "backups")

	for key, env := range map[string]string{
		"database.host":       "DB_HOST",
		"database.port":       "DB_PORT",
		"database.user":       "DB_USER",
		"database.password":   "DB_PASSWORD",
		"database.name":       "DB_NAME",
		"schema_file":         "SCHEMA_FILE",
		"backup_dir":          "BACKUP_DIR",
		"seed.admin_email":    "SEED_ADMIN_EMAIL",
		"seed.admin_password": "SEED_ADMIN_PASSWORD",
		"seed.owner_email":    "SEED_OWNER_EMAIL",
		"seed.owner_password": "SEED_OWNER_PASSWORD",
		"seed.company_name":   "SEED_COMPANY_NAME",
	} {
		viper.BindEnv(key, env)
	}
}

// initConfig loads .env, then the config file. Environment variables win over the file.
func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-sync")
		viper.SetConfigType("yaml")
	}

	// A config file is optional; everything can come from the environment.
	_ = viper.ReadInConfig()
}

// commandContext is cancelled on Ctrl-C, SIGTERM or after --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newEngine builds the engine from the active configuration.
func newEngine() (*engine.Engine, *Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	manager := conn.NewManager(cfg.Database.ConnConfig(), Log)
	e := engine.New(manager, engine.Settings{
		SchemaFile: cfg.SchemaFile,
		BackupDir:  cfg.BackupDir,
		Seed:       cfg.Seed.EngineSeed(),
	}, Log)
	return e, cfg, nil
}
