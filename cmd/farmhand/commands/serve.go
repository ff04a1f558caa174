package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/prismvfx/farmhand/config"
	"github.com/prismvfx/farmhand/errors"
	"github.com/prismvfx/farmhand/farm"
	"github.com/prismvfx/farmhand/logger"
	"github.com/prismvfx/farmhand/render"
	"github.com/prismvfx/farmhand/server"
	"github.com/prismvfx/farmhand/stream"
)

// ServeCmd starts the orchestrator and its HTTP/WebSocket API
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the render job orchestrator",
	Long: `Start the farmhand orchestrator: restore jobs from the on-disk store,
begin background status polling, and serve the HTTP API plus the
WebSocket event stream.`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveListenAddr string
	serveStorePath  string
	serveMockFarm   bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a TOML config file")
	ServeCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Listen address (overrides config)")
	ServeCmd.Flags().StringVar(&serveStorePath, "store", "", "Job store path (overrides config)")
	ServeCmd.Flags().BoolVar(&serveMockFarm, "mock-farm", true, "Register the built-in mock farm adapter")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if cfg.Log.JSON && !logger.JSONOutput {
		if err := logger.Initialize(true); err != nil {
			return errors.Wrap(err, "failed to reinitialize logger")
		}
	}
	if serveListenAddr != "" {
		cfg.Server.ListenAddr = serveListenAddr
	}
	if serveStorePath != "" {
		cfg.Store.Path = serveStorePath
	}

	registry := farm.NewRegistry()
	if serveMockFarm {
		if err := registry.Register(farm.NewMockFarm().Adapter()); err != nil {
			return errors.Wrap(err, "failed to register mock farm")
		}
	}

	store := render.NewStore(cfg.Store.Path, cfg.Store.Retention(), logger.Logger)
	hub := stream.NewHub(stream.DefaultBufferSize, logger.Logger)

	orch := render.New(registry, store, hub, render.Config{
		HistoryLimit:         cfg.Jobs.HistoryLimit,
		PollInterval:         cfg.Jobs.PollInterval(),
		StorePersistInterval: cfg.Jobs.PersistInterval(),
		TerminalStatuses:     cfg.Jobs.TerminalStatuses,
	}, logger.Logger)

	orch.Restore()
	orch.StartBackgroundPolling()

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Keepalive:  cfg.Server.Keepalive(),
	}, orch, hub, logger.Logger)

	printStartupBanner(cfg, registry)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		orch.StopBackgroundPolling()
		return errors.Wrap(err, "server failed")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan struct{})
		go func() {
			srv.Stop()
			// Final persist happens here so in-flight status updates survive restart
			orch.StopBackgroundPolling()
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			pterm.Success.Println("Orchestrator stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// printStartupBanner summarizes the running configuration
func printStartupBanner(cfg *config.Config, registry *farm.Registry) {
	pterm.DefaultSection.Println("farmhand orchestrator")
	pterm.Info.Printf("Listening on %s\n", cfg.Server.ListenAddr)
	pterm.Info.Printf("Job store: %s (retention %s)\n", cfg.Store.Path, retentionLabel(cfg))
	pterm.Info.Printf("Registered farms: %v\n", registry.Names())
}

func retentionLabel(cfg *config.Config) string {
	if cfg.Store.RetentionSeconds < 0 {
		return "unlimited"
	}
	return cfg.Store.Retention().String()
}
