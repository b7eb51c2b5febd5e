package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/lexpilot/lexpilot/internal/console"
)

type app struct {
	apiURL  string
	token   string
	verbose bool
	cfg     *console.Config
	cfgErr  error
	clock   clockwork.Clock
	stdout  io.Writer
	stderr  io.Writer
}

// NewRootCommand builds the lexconsole command tree on the process streams.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdout, os.Stderr)
}

// NewRootCommandWithIO builds the command tree writing to out and errOut.
func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	cfg, cfgErr := console.LoadConfig()
	if cfg == nil {
		cfg = &console.Config{
			APIURL:         "http://localhost:8080",
			PollInterval:   console.DefaultPollInterval,
			RetryDelay:     console.DefaultRetryDelay,
			RequestTimeout: 15 * time.Second,
		}
	}
	a := &app{cfg: cfg, cfgErr: cfgErr, clock: clockwork.NewRealClock(), stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "lexconsole",
		Short:         "Administrator console for the LexPilot audit and dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", cfg.APIURL, "base URL of the LexPilot API")
	cmd.PersistentFlags().StringVar(&a.token, "token", cfg.Token, "access token (defaults to LEXCONSOLE_TOKEN)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if a.cfgErr != nil {
			return fmt.Errorf("invalid LEXCONSOLE_* configuration: %w", a.cfgErr)
		}
		return nil
	}

	cmd.AddCommand(
		newLoginCmd(a),
		newAuditCmd(a),
		newExportCmd(a),
		newDashboardCmd(a),
	)
	return cmd
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func (a *app) client() (*console.Client, error) {
	return console.NewClient(a.apiURL, a.token, &http.Client{Timeout: a.cfg.RequestTimeout}, a.logger())
}

func (a *app) pollerOptions() console.PollerOptions {
	return console.PollerOptions{
		Clock:      a.clock,
		Interval:   a.cfg.PollInterval,
		RetryDelay: a.cfg.RetryDelay,
		Logger:     a.logger(),
	}
}

// authorize applies the local access decision before any admin request.
func (a *app) authorize() error {
	return decisionError(console.Access(console.AuthContextFromToken(a.token)))
}

func decisionError(d console.Decision) error {
	switch d {
	case console.DecisionAllow:
		return nil
	case console.DecisionRedirectLogin:
		return errors.New("not signed in: run `lexconsole login` and export LEXCONSOLE_TOKEN")
	case console.DecisionRedirectHome:
		return errors.New("administrator role required")
	default:
		return errors.New("authentication pending")
	}
}

// waitSettled blocks until settled reports true, re-checking on every change.
func waitSettled(ctx context.Context, changes <-chan struct{}, settled func() bool) error {
	for !settled() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
	return nil
}

// parseBound accepts RFC 3339 timestamps or yyyy-mm-dd dates. A bare date used
// as an upper bound covers the whole day.
func parseBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use yyyy-mm-dd or RFC 3339", raw)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
