package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop and recreate the index from scratch",
	Long: `flush drops every table the index owns (core schema plus every
registered sub-indexer's own tables) and recreates them empty. The
next update/watch run will rebuild the index from a cold scan.`,
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

		if err := idx.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		fmt.Println("index flushed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
