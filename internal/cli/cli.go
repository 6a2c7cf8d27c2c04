package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/stagecheck/internal/app"
	"github.com/specialistvlad/stagecheck/internal/config"
	"github.com/specialistvlad/stagecheck/internal/hcl_adapter"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	ExitViolations = 1
	ExitUsage      = 2
)

type flags struct {
	configFile       string
	logFormat        string
	logLevel         string
	workers          int
	reporters        []string
	overlayURL       string
	overlayNamespace string
	overlayEvent     string
	overlayTimeout   time.Duration
	overlayInsecure  bool
	metricsAddr      string
	traceFile        string
	debugChannel     bool
	watch            bool
}

// NewCommand builds the root command. Running it without a subcommand is
// the same as running "validate".
func NewCommand(outW, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "stagecheck",
		Short: "Validate that navigations between routes never block outside a fallback",
		Long: `stagecheck renders a route description in stages and checks, for every
navigation a client can prefetch, that anything not available from the
prefetched stages is wrapped in a fallback boundary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)

	validate := newValidateCommand(outW, errW)
	root.AddCommand(validate)
	root.Args = validate.Args
	root.RunE = validate.RunE
	root.Flags().AddFlagSet(validate.Flags())
	return root
}

func newValidateCommand(outW, errW io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "validate [ROUTE_PATH]",
		Short: "Validate a route description (.hcl file or directory)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f, args)
			if err != nil {
				return err
			}
			if cfg == nil {
				return cmd.Help()
			}
			return run(cmd.Context(), outW, errW, cfg)
		},
	}

	defaults := app.DefaultConfig()
	fs := cmd.Flags()
	fs.StringVarP(&f.configFile, "config", "c", "", "Path to a YAML config file.")
	fs.StringVar(&f.logFormat, "log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.IntVarP(&f.workers, "workers", "w", defaults.Workers, "Number of navigations validated concurrently.")
	fs.StringSliceVarP(&f.reporters, "report", "r", defaults.Reporters, "Report sinks: text, json, yaml, overlay. Repeatable.")
	fs.StringVar(&f.overlayURL, "overlay-url", "", "socket.io URL of the development overlay.")
	fs.StringVar(&f.overlayNamespace, "overlay-namespace", "/", "socket.io namespace of the development overlay.")
	fs.StringVar(&f.overlayEvent, "overlay-event", "", "Event name used to push reports to the overlay.")
	fs.DurationVar(&f.overlayTimeout, "overlay-timeout", 0, "How long to wait for the overlay to acknowledge a report.")
	fs.BoolVar(&f.overlayInsecure, "overlay-insecure", false, "Skip TLS certificate verification when connecting to the overlay.")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. ':9090').")
	fs.StringVar(&f.traceFile, "trace-file", "", "Write OpenTelemetry spans as JSON to this file.")
	fs.BoolVar(&f.debugChannel, "debug-channel", defaults.DebugChannel, "Record source locations and owner stacks for violations.")
	fs.BoolVar(&f.watch, "watch", false, "Re-validate whenever a route description file changes.")
	return cmd
}

// buildConfig layers defaults, the config file and the flags that were set,
// then validates the result. A nil config means nothing was asked for.
func buildConfig(cmd *cobra.Command, f *flags, args []string) (*app.Config, error) {
	cfg := app.DefaultConfig()
	if f.configFile != "" {
		loaded, err := app.LoadConfigFile(f.configFile, cfg)
		if err != nil {
			return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
		}
		cfg = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("log-format") {
		cfg.LogFormat = strings.ToLower(f.logFormat)
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(f.logLevel)
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("report") {
		cfg.Reporters = f.reporters
	}
	if fs.Changed("overlay-url") {
		cfg.OverlayURL = f.overlayURL
	}
	if fs.Changed("overlay-namespace") {
		cfg.OverlayNamespace = f.overlayNamespace
	}
	if fs.Changed("overlay-event") {
		cfg.OverlayEvent = f.overlayEvent
	}
	if fs.Changed("overlay-timeout") {
		cfg.OverlayTimeout = f.overlayTimeout
	}
	if fs.Changed("overlay-insecure") {
		cfg.OverlayInsecure = f.overlayInsecure
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if fs.Changed("trace-file") {
		cfg.TraceFile = f.traceFile
	}
	if fs.Changed("debug-channel") {
		cfg.DebugChannel = f.debugChannel
	}
	if fs.Changed("watch") {
		cfg.Watch = f.watch
	}
	if len(args) > 0 {
		cfg.RoutePath = args[0]
	}

	if cfg.RoutePath == "" {
		slog.Debug("No route path provided, printing usage and exiting.")
		return nil, nil
	}

	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "config", validated)
	return validated, nil
}

func run(ctx context.Context, outW, errW io.Writer, cfg *app.Config) error {
	a, err := app.NewApp(outW, errW, cfg, hcl_adapter.NewLoader())
	if err != nil {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	defer func() {
		if cerr := a.Close(ctx); cerr != nil {
			slog.Warn("Failed to shut down cleanly.", "error", cerr)
		}
	}()

	report, err := a.Run(ctx)
	if err != nil {
		if errors.Is(err, config.ErrInvalidModel) || errors.Is(err, routetree.ErrConfig) {
			return &ExitError{Code: ExitUsage, Message: err.Error()}
		}
		return err
	}
	if report != nil && !report.Passed() {
		return &ExitError{
			Code:    ExitViolations,
			Message: fmt.Sprintf("%d navigation(s) failed validation with %d violation(s)", failedTasks(report.Tasks), report.ViolationCount()),
		}
	}
	return nil
}

// Execute runs the command line with args.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	cmd := NewCommand(outW, errW)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		if isUsageError(err) {
			return &ExitError{Code: ExitUsage, Message: err.Error()}
		}
		return err
	}
	return nil
}
