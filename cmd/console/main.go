package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wincvex/console/internal/apiclient"
	"github.com/wincvex/console/internal/config"
	"github.com/wincvex/console/internal/logging"
	"github.com/wincvex/console/internal/terminal"
	"github.com/wincvex/console/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}

type options struct {
	server   string
	host     string
	maxLines int
	logFile  string
	noColor  bool
}

func newRootCmd() *cobra.Command {
	config.Load()
	opts := options{
		server:   config.Cfg.ServerURL,
		maxLines: config.Cfg.TerminalMaxLines,
		logFile:  filepath.Join(os.TempDir(), "wincvex-console.log"),
	}

	cmd := &cobra.Command{
		Use:           "console [--server URL] [--host NAME]",
		Short:         "Interactive terminal for wincvex agents",
		Long:          "Lists the lab agents, toggles their vulnerability flags and opens a command session with the selected host.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", opts.server, "agent service base URL")
	flags.StringVar(&opts.host, "host", "", "host to connect to on start")
	flags.IntVar(&opts.maxLines, "max-lines", opts.maxLines, "transcript line limit (0 keeps everything)")
	flags.StringVar(&opts.logFile, "log-file", opts.logFile, "file for client logs")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colors")
	return cmd
}

func run(ctx context.Context, opts options) error {
	// The terminal belongs to the UI, so logs only go to the file.
	logging.Setup(opts.logFile, config.Cfg.LogLevel, nil)
	defer logging.Close()

	if opts.noColor {
		tui.DisableColor()
	}

	changes := tui.NewNotifier()
	session := terminal.NewSessionManager(terminal.Config{
		Origin:      opts.server,
		Path:        config.Cfg.WSPath,
		MaxLines:    opts.maxLines,
		DialTimeout: config.Cfg.DialTimeout,
		OnChange:    changes.Notify,
		OnChannelClosed: func(host string, cause error) {
			log.Info().Str("host", host).AnErr("cause", cause).Msg("session channel closed; ctrl+r reconnects")
		},
	})
	defer session.Close()

	logs := terminal.NewLogTail(terminal.LogTailConfig{
		Origin:      opts.server,
		MaxLines:    config.Cfg.LogStreamMaxLines,
		DialTimeout: config.Cfg.DialTimeout,
		OnChange:    changes.Notify,
	})
	defer logs.Stop()

	model := tui.New(ctx, tui.Options{
		Session:     session,
		Logs:        logs,
		API:         apiclient.New(opts.server, nil),
		Changes:     changes,
		InitialHost: opts.host,
	})

	log.Info().Str("server", opts.server).Msg("console starting")
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
