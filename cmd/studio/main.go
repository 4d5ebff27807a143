package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/logging"
)

// Version is stamped by the release build.
var Version = "dev"

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "studio - visual page-builder backend",
	Long: `studio is the backend for a visual page-builder: a page store with
a three-tier cache, navigation history, a handler dispatch surface with
sandboxed scripts, and an HTTP resolve endpoint for form components.

Run "studio serve" to start the full service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			cfg.Storage.Path = dbPath
		}
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Console = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Logging.Enabled {
			return logging.Initialize(cfg.Logging.Dir, logging.Options{
				Level:      cfg.Logging.Level,
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				Console:    cfg.Logging.Console,
			})
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the studio version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("studio %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to console")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
