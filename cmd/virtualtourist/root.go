package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msomdec/virtual-tourist/internal/config"
)

var cfgFile string

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "virtualtourist",
		Short: "Drop pins on a map and browse photos taken around them",
		Long: `virtualtourist serves an API for pinning map locations. Each pin gets an
album of Flickr photos taken nearby; images are downloaded on demand and
kept in the configured image store.

Configuration is read from $HOME/.virtualtourist.yaml (or --config),
VT_* environment variables and flags, later sources winning.`,
		Version:      version,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.virtualtourist.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("database-driver", "sqlite", "database driver: sqlite or postgres")
	rootCmd.PersistentFlags().String("database-path", "virtualtourist.db", "SQLite database file")
	rootCmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	rootCmd.PersistentFlags().String("flickr-api-key", "", "Flickr API key")
	cobra.CheckErr(config.BindFlags(viper.GetViper(), rootCmd.PersistentFlags(), map[string]string{
		"log-level":      "log_level",
		"flickr-api-key": "flickr.api_key",
	}))

	rootCmd.AddCommand(
		newServeCommand(),
		newSearchCommand(),
		newMigrateCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func initConfig() {
	cobra.CheckErr(config.InitConfig(viper.GetViper(), cfgFile))
}

// loadConfig resolves the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.LogLevel)
	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}
	return cfg, nil
}

func setupLogger(level slog.Level) {
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "virtualtourist", version)
		},
	}
}
