package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notewik/noteindex/internal/idxstore"
	"github.com/notewik/noteindex/internal/index"
	"github.com/notewik/noteindex/internal/logging"
	"github.com/notewik/noteindex/pkg/config"
)

var (
	// Version is set during build.
	Version = "0.1.0"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "noteindexd",
	Short: "Keep a notebook's persistent index in sync with its store",
	Long: `noteindexd maintains an embedded SQLite index over a notebook's
pages: existence, children, content etags, outgoing links and tags.

Examples:
  noteindexd update                 # index the whole notebook, then exit
  noteindexd update Projects:Go     # index one subtree
  noteindexd watch                  # run the background worker until interrupted
  noteindexd status                 # report freshness and worker state
  noteindexd flush                  # drop and rebuild the index from scratch
  noteindexd doctor                 # check config, store and database health`,
	Version: Version,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log_level", "", "override logging.level from config (debug, info, warn, error)")
}

// loadConfig loads configuration and applies any --log_level override,
// then initialises the global logger before returning.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log_level"); level != "" {
		cfg.Logging.Level = level
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	return cfg, nil
}

// openIndex wires a Conn, a StorageLayout and an Index from cfg,
// creating the store directory and config directory as needed.
func openIndex(cfg *config.Config) (*index.Index, error) {
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, err
	}

	var conn *index.Conn
	var err error
	if cfg.Notebook.InMemory {
		conn, err = index.OpenMemory()
	} else {
		conn, err = index.OpenFile(cfg.Notebook.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	if err := os.MkdirAll(cfg.Notebook.StorePath, 0755); err != nil {
		conn.Disconnect()
		return nil, fmt.Errorf("creating notebook store path: %w", err)
	}
	layout := idxstore.NewFSLayout(cfg.Notebook.StorePath)

	idx, err := index.New(conn, layout)
	if err != nil {
		conn.Disconnect()
		return nil, fmt.Errorf("initialising index: %w", err)
	}
	return idx, nil
}
