// Package cli implements the clubflow command-line interface.
//
// Commands are built with Cobra around an [App] that carries every
// dependency: configuration, routing, the backend client, the reconciling
// executor and the terminal printer. Tests build an App with fakes and run
// [NewRootCommand] directly; production code goes through [Execute].
//
// Commands:
//   - show: render the approval stepper of one subject
//   - list: list the subjects of a kind with their current stage
//   - approve: approve the current stage of one or more subjects
//   - reject: reject the current stage of a subject with comments
//   - stages: print the configured approval chains
//   - serve: run the HTTP façade for dashboards
//   - version: print the build version
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clubflow/internal/backend"
	"clubflow/internal/config"
	"clubflow/internal/lifecycle"
	"clubflow/internal/logging"
	"clubflow/internal/manifest"
	"clubflow/internal/output"
	"clubflow/internal/router"
)

// Version is set at build time with -ldflags "-X clubflow/internal/cli.Version=...".
var Version = "dev"

// Exit codes.
const (
	exitFailure  = 1
	exitMismatch = 2
)

// Backend is the subset of [backend.Client] the commands use.
type Backend interface {
	lifecycle.StateReader
	lifecycle.ActionSubmitter
	Get(ctx context.Context, kind, id string) (*backend.Subject, error)
	List(ctx context.Context, kind string) ([]backend.Subject, error)
}

// App holds the dependencies shared by all commands.
type App struct {
	Config   *config.Config
	Router   *router.Router
	Backend  Backend
	Executor *lifecycle.Executor
	Printer  *output.Printer
	Logger   zerolog.Logger

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer
}

// NewApp wires the production dependencies for cfg.
//
// The router is built from the workflows section and, when manifest_path is
// set, overlaid with the stage manifest.
func NewApp(cfg *config.Config) (*App, error) {
	r, err := router.NewRouterFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ManifestPath != "" {
		m, err := manifest.ReadFromFile(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		if err := r.ApplyManifest(m); err != nil {
			return nil, err
		}
	}

	log := logging.New(cfg.Log, os.Stderr)
	client := backend.NewClient(cfg.Backend, r, log)

	return &App{
		Config:    cfg,
		Router:    r,
		Backend:   client,
		Printer:   output.NewPrinter(),
		Logger:    log,
		LogOutput: os.Stderr,
	}, nil
}

// executor returns the App's executor, building one from Backend if needed.
func (a *App) executor() *lifecycle.Executor {
	if a.Executor == nil {
		a.Executor = lifecycle.NewExecutor(a.Backend, a.Backend, a.Logger)
		a.Executor.SetRouter(a.routing())
	}
	return a.Executor
}

// routing returns the App's router, falling back to the defaults.
func (a *App) routing() *router.Router {
	if a.Router == nil {
		a.Router = router.NewRouter()
	}
	return a.Router
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clubflow",
		Short: "Review and decide club proposals and venue bookings",
		Long: `clubflow drives the university approval chain for club event proposals
and venue bookings:

  Club → Faculty Advisor → Student Council → Student Welfare → Security

It renders where each request stands, records approvals and rejections
against the administration backend, and serves the same view to dashboards.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newShowCommand(app),
		newListCommand(app),
		newApproveCommand(app),
		newRejectCommand(app),
		newStagesCommand(app),
		newServeCommand(app),
		newVersionCommand(),
	)

	return rootCmd
}

// ExecuteResult is the outcome of running the command tree.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the production [App] for cfg and runs args through it.
func RunWithConfig(cfg *config.Config, args []string) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		return ExecuteResult{ExitCode: exitFailure, Err: err}
	}
	return run(app, args)
}

func run(app *App, args []string) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		return ExecuteResult{ExitCode: exitFailure, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads configuration, runs the command line and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}

	result := RunWithConfig(cfg, os.Args[1:])
	if result.Err != nil {
		if _, ok := IsExitError(result.Err); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
	}
	os.Exit(result.ExitCode)
}

// fail prints err and returns the matching [ExitError].
func (a *App) fail(cmd *cobra.Command, code int, err error) error {
	cmd.SilenceUsage = true
	a.Printer.Error(err.Error())
	return NewExitError(code)
}
