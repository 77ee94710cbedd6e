package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notewik/noteindex/internal/daemon"
	"github.com/notewik/noteindex/pkg/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a backgrounded 'watch --daemonize' worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		d := daemon.New(config.ConfigPath(), Version)
		status := d.Status()
		if !status.Running {
			fmt.Println("no daemonized watcher is running")
			return nil
		}
		if err := d.Stop(); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		fmt.Printf("stopped noteindexd watcher (pid %d)\n", status.PID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
