package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notewik/noteindex/internal/daemon"
	"github.com/notewik/noteindex/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report index freshness and worker state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		idx, err := openIndex(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		uptodate, err := idx.ProbablyUptodate()
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		fmt.Printf("Store:             %s\n", cfg.Notebook.StorePath)
		fmt.Printf("Database:          %s\n", cfg.Notebook.DBPath)
		if uptodate {
			fmt.Println("Probably uptodate: yes")
		} else {
			fmt.Println("Probably uptodate: no")
		}
		if st := daemon.New(config.ConfigPath(), Version).Status(); st.Running {
			fmt.Printf("Watcher:           running (pid %d)\n", st.PID)
		} else {
			fmt.Println("Watcher:           not running")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
