package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/specialistvlad/rendergraph/internal/app"
	"github.com/specialistvlad/rendergraph/internal/applier"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/prefs"
)

// Exit codes.
const (
	ExitPass  = 1 // a pass-level failure
	ExitUsage = 2 // invalid usage, preferences or documents
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

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

func passError(err error) error {
	return &ExitError{Code: ExitPass, Message: err.Error()}
}

// options are shared by all commands.
type options struct {
	loader     config.Loader
	configPath string
	logLevel   string
	logFormat  string
	trace      bool
	prefs      prefs.Prefs
}

// NewRootCommand builds the command tree. Documents are read with loader.
func NewRootCommand(out, errOut io.Writer, loader config.Loader) *cobra.Command {
	o := &options{loader: loader}
	root := &cobra.Command{
		Use:   "rendergraph",
		Short: "Resolve render-settings node graphs and apply them to a scene",
		Long: `rendergraph resolves the task reachable from a root node of a node graph,
aggregates the override data of every contributing node and applies it to
the scene, writing only attributes whose value actually changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.loadPrefs()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "preferences file (default: "+prefs.DefaultPath+")")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&o.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&o.trace, "trace", false, "print the spans of every pass to stderr")

	root.AddCommand(
		newApplyCommand(o),
		newQueueCommand(o),
		newWatchCommand(o),
		newInspectCommand(o),
	)
	return root
}

// Execute runs the command line and normalizes every failure into an
// *ExitError.
func Execute(ctx context.Context, args []string, out, errOut io.Writer, loader config.Loader) error {
	cmd := NewRootCommand(out, errOut, loader)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Anything cobra rejects before RunE is a usage error.
	return usageError(err)
}

func (o *options) loadPrefs() error {
	overrides := make(map[string]any)
	if o.logLevel != "" {
		overrides["log_level"] = o.logLevel
	}
	if o.logFormat != "" {
		overrides["log_format"] = o.logFormat
	}
	p, _, err := prefs.Load(o.configPath, overrides)
	if err != nil {
		return usageError(err)
	}
	o.prefs = p
	return nil
}

// newApp builds an App; every failure is a usage error.
func (o *options) newApp(cmd *cobra.Command, paths []string, mode applier.Mode, dryRun bool) (*app.App, error) {
	cfg, err := app.NewConfig(app.Config{
		Paths:  paths,
		Mode:   mode,
		DryRun: dryRun,
		Trace:  o.trace,
		Prefs:  o.prefs,
	})
	if err != nil {
		return nil, usageError(err)
	}
	a, err := app.New(cmd.Context(), cmd.ErrOrStderr(), cfg, o.loader)
	if err != nil {
		return nil, usageError(err)
	}
	return a, nil
}
