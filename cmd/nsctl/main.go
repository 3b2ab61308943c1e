// Command nsctl operates a name server namespace from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/config"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	storage    string
	dbPath     string
}

var flags globalFlags

// loadedConfig is set by the root command before any subcommand runs.
var loadedConfig *config.Config

var rootCmd = &cobra.Command{
	Use:           "nsctl",
	Short:         "Manage a name server namespace",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["skipConfig"] == "true" {
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		loadedConfig = cfg
		return logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/nameserver/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&flags.storage, "storage", "", "storage engine override (memory, badger)")
	pf.StringVar(&flags.dbPath, "db-path", "", "badger directory override")
}

// loadConfig loads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.storage != "" {
		cfg.Storage.Type = flags.storage
	}
	if flags.dbPath != "" {
		cfg.Storage.Badger["db_path"] = flags.dbPath
	}
	if flags.logLevel != "" || flags.storage != "" || flags.dbPath != "" {
		config.ApplyDefaults(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid command line override: %w", err)
		}
	}
	return cfg, nil
}

// withComponents builds the configured components, runs fn and closes them.
func withComponents(ctx context.Context, fn func(ctx context.Context, c *config.Components) error) error {
	components, err := config.Build(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("failed to close storage: %v", err)
		}
	}()
	return fn(ctx, components)
}

func main() {
	rootCmd.AddCommand(configCmd, serveCmd, gcCmd, repoCmd)
	rootCmd.AddCommand(namespaceCommands()...)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
