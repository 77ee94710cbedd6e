package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/notewik/noteindex/pkg/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, store and database health",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor(cmd)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command) {
	reportID := uuid.New().String()
	fmt.Println("noteindexd doctor report", reportID)
	fmt.Println("==========================================")
	fmt.Println()

	allOK := true

	fmt.Print("Configuration... ")
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		allOK = false
	} else {
		fmt.Println("OK")
		fmt.Printf("  Config dir: %s\n", config.ConfigPath())
	}

	if cfg == nil {
		fmt.Println()
		fmt.Println("Cannot proceed without configuration.")
		os.Exit(1)
	}

	fmt.Print("Notebook store... ")
	if cfg.Notebook.InMemory {
		fmt.Println("in-memory (no store path)")
	} else if info, err := os.Stat(cfg.Notebook.StorePath); err != nil {
		fmt.Println("NOT FOUND (will be created on first use)")
		fmt.Printf("  Path: %s\n", cfg.Notebook.StorePath)
	} else if !info.IsDir() {
		fmt.Println("ERROR: store path is not a directory")
		fmt.Printf("  Path: %s\n", cfg.Notebook.StorePath)
		allOK = false
	} else {
		fmt.Println("OK")
		fmt.Printf("  Path: %s\n", cfg.Notebook.StorePath)
	}

	fmt.Print("Index database... ")
	idx, err := openIndex(cfg)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		allOK = false
	} else {
		uptodate, err := idx.ProbablyUptodate()
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (probably_uptodate=%v)\n", uptodate)
		}
		idx.Close()
	}

	fmt.Print("HTTP API... ")
	if !cfg.HTTPAPI.Enabled {
		fmt.Println("disabled")
	} else if cfg.HTTPAPI.Port < 1 || cfg.HTTPAPI.Port > 65535 {
		fmt.Println("ERROR: invalid port")
		allOK = false
	} else {
		fmt.Printf("enabled, %s:%d\n", cfg.HTTPAPI.Host, cfg.HTTPAPI.Port)
	}

	fmt.Println()
	if allOK {
		fmt.Println("All systems operational.")
	} else {
		fmt.Println("Some issues detected. Please review the errors above.")
		os.Exit(1)
	}
}
