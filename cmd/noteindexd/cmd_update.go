package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Index a subtree (or the whole notebook) to completion",
	Long: `update runs the tree-indexer state machine to completion, starting
from path (or the notebook root, if path is omitted). It stops any
running worker first and returns once every page it touched is
up to date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		idx, err := openIndex(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.Update(path); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		fmt.Fprintln(os.Stdout, "index up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
