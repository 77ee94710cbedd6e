package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notewik/noteindex/internal/daemon"
	"github.com/notewik/noteindex/internal/index"
	"github.com/notewik/noteindex/internal/logging"
	"github.com/notewik/noteindex/pkg/config"
)

var watchDaemonize bool

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Run the background worker until interrupted",
	Long: `watch starts the background indexing worker over path (or the
whole notebook, if path is omitted) and blocks until SIGINT/SIGTERM.
If http_api.enabled is set in config, it also serves a read-only
status/query HTTP API for the duration. --daemonize forks the worker
into the background and returns immediately; use "noteindexd stop" to
shut it down.`,
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

		d := daemon.New(config.ConfigPath(), Version)

		if watchDaemonize {
			childArgs := append([]string{"watch"}, args...)
			if err := d.Daemonize(childArgs); err != nil {
				return fmt.Errorf("daemonize: %w", err)
			}
			fmt.Println("noteindexd watch started in the background")
			return nil
		}

		idx, err := openIndex(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		log := logging.GetLogger("noteindexd")

		if err := idx.StartUpdate(path); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		log.Info("background worker started", "path", path)

		if err := d.Start(cfg.Notebook.StorePath, cfg.HTTPAPI.Enabled, cfg.HTTPAPI.Host, cfg.HTTPAPI.Port); err != nil {
			log.Warn("failed to record daemon state", "error", err)
		}
		defer d.Cleanup()

		var srv *http.Server
		if cfg.HTTPAPI.Enabled {
			engine := index.NewHTTPAPI(idx, index.HTTPAPIConfig{
				Host: cfg.HTTPAPI.Host,
				Port: cfg.HTTPAPI.Port,
				CORS: cfg.HTTPAPI.CORS,
			})
			addr := net.JoinHostPort(cfg.HTTPAPI.Host, strconv.Itoa(cfg.HTTPAPI.Port))
			srv = &http.Server{Addr: addr, Handler: engine}
			go func() {
				log.Info("http api listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http api stopped", "error", err)
				}
			}()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		idx.StopUpdate()
		idx.WaitForUpdate(0)
		if srv != nil {
			_ = srv.Close()
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchDaemonize, "daemonize", false, "fork the worker into the background")
	rootCmd.AddCommand(watchCmd)
}
