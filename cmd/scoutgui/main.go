// ABOUTME: CLI entrypoint for the Scout dashboard with web server and inline terminal modes.
// ABOUTME: Wires the agent client, store, history poller, and presentation surface with signal handling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/CIRISAI/scoutgui/pipeline"
	"github.com/CIRISAI/scoutgui/scout"
	"github.com/CIRISAI/scoutgui/tui"
	"github.com/CIRISAI/scoutgui/web"
)

var version = "dev"

// cliFlags holds the command-line overrides over the config file.
type cliFlags struct {
	configPath  string
	addr        string
	baseURL     string
	agentID     string
	channelID   string
	tuiMode     bool
	showVersion bool
}

func main() {
	loadDotEnv(".env")

	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("scoutgui %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(flags))
}

// parseFlags parses command-line flags into cliFlags.
func parseFlags() cliFlags {
	var flags cliFlags

	fs := flag.NewFlagSet("scoutgui", flag.ContinueOnError)
	fs.StringVar(&flags.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&flags.addr, "addr", "", "Dashboard listen address (overrides config)")
	fs.StringVar(&flags.baseURL, "base-url", "", "Agent API base URL (overrides config)")
	fs.StringVar(&flags.agentID, "agent", "", "Agent ID (overrides config)")
	fs.StringVar(&flags.channelID, "channel", "", "Channel ID (overrides config)")
	fs.BoolVar(&flags.tuiMode, "tui", false, "Render the live view inline in the terminal instead of serving the web UI")
	fs.BoolVar(&flags.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	return flags
}

// run assembles the dashboard and blocks until shutdown.
// Returns an exit code: 0 for success, 1 for failure.
func run(flags cliFlags) int {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		log.Printf("scoutgui: %v", err)
		return 1
	}
	if flags.addr != "" {
		cfg.ListenAddr = flags.addr
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}
	if flags.agentID != "" {
		cfg.AgentID = flags.agentID
	}
	if flags.channelID != "" {
		cfg.ChannelID = flags.channelID
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := pipeline.NewStore()
	client := scout.NewClient(cfg.BaseURL, os.Getenv("SCOUT_API_TOKEN"), cfg.AgentID)

	// Stream and poller run for the life of the process; both treat
	// cancellation as a clean exit.
	go func() {
		if err := client.StreamSteps(ctx, store); err != nil {
			log.Printf("scoutgui: reasoning stream ended: %v", err)
		}
	}()
	go client.PollHistory(ctx, store, cfg.ChannelID, time.Duration(cfg.PollInterval), cfg.HistoryLimit)

	if flags.tuiMode {
		return runTUI(ctx, stop, store, cfg)
	}
	return runServer(ctx, store, client, cfg)
}

// runServer serves the web dashboard until the context ends, then shuts the
// listener down gracefully.
func runServer(ctx context.Context, store *pipeline.Store, client *scout.Client, cfg appConfig) int {
	handler, err := web.NewServer(web.ServerConfig{
		Store:     store,
		Submitter: client,
		ChannelID: cfg.ChannelID,
		Coeffs:    cfg.Impact,
		AgentName: cfg.AgentName,
	})
	if err != nil {
		log.Printf("scoutgui: %v", err)
		return 1
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("scoutgui: dashboard listening addr=http://%s agent=%s", cfg.ListenAddr, cfg.AgentID)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("scoutgui: shutdown: %v", err)
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("scoutgui: server: %v", err)
			return 1
		}
		return 0
	}
}

// runTUI renders the inline terminal view until the user quits or the
// context ends.
func runTUI(ctx context.Context, cancel context.CancelFunc, store *pipeline.Store, cfg appConfig) int {
	model := tui.NewWatchModel(store, cfg.Impact, cancel)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		// A cancelled context is the normal quit path, not a failure.
		if ctx.Err() != nil {
			return 0
		}
		log.Printf("scoutgui: terminal view: %v", err)
		return 1
	}
	return 0
}
