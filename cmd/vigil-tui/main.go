package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
	"github.com/tinytelemetry/vigil/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var socketPath string
	var local bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/vigil/config.yml)")
	flag.StringVar(&socketPath, "socket", "", "override socket path to connect to vigil service")
	flag.BoolVar(&local, "local", false, "run an in-process session instead of connecting to the service")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Vigil TUI - Dashboard Client\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	if err := runTUI(cfg, local); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig, local bool) error {
	var client model.DashboardClient
	var runLocal func(context.Context) error
	source := "socket"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if local {
		sess, err := session.New(session.Config{
			Name:           "local",
			Streams:        cfg.Streams,
			LogCapacity:    cfg.LogCapacity,
			IngestInterval: cfg.IngestInterval,
			SampleInterval: cfg.SampleInterval,
			StreamInterval: cfg.StreamInterval,
			Seed:           cfg.Seed,
		})
		if err != nil {
			return fmt.Errorf("create local session: %w", err)
		}
		runLocal = sess.Run
		client = session.Local{D: sess}
		source = "local"
	} else {
		c, err := socketrpc.Dial(cfg.SocketPath)
		if err != nil {
			return fmt.Errorf("cannot connect to vigil service at %s: %w\nIs the vigil service running? Start it with: vigil serve (or use -local)", cfg.SocketPath, err)
		}
		defer c.Close()
		client = c
	}

	dashboard := tui.NewDashboardModel(client, tui.Config{
		RefreshInterval: cfg.RefreshInterval,
		ExportDir:       cfg.ExportDir,
		Source:          source,
	})

	p := tea.NewProgram(dashboard, tea.WithAltScreen())
	if runLocal != nil {
		go superviseLocal(ctx, runLocal, func(err error) {
			p.Send(tui.BackendStoppedMsg{Err: err})
		})
	}
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// superviseLocal runs the in-process session until ctx is done and hands any
// failure to report.
func superviseLocal(ctx context.Context, run func(context.Context) error, report func(error)) {
	if err := run(ctx); err != nil {
		report(fmt.Errorf("local session: %w", err))
	}
}
