// Package cli wires the cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/datawright/conform/internal/adapter/tabular"
	"github.com/datawright/conform/internal/usecase/fixloop"
	"github.com/datawright/conform/internal/usecase/validate"
)

// ErrVersionRequested signals that the user asked for the version; callers
// should exit cleanly without running anything.
var ErrVersionRequested = errors.New("version requested")

// Runner executes a fix-loop run.
type Runner interface {
	Run(ctx context.Context, req fixloop.Request) (fixloop.Result, error)
}

// ResultWriter persists run artifacts and returns the paths written.
type ResultWriter interface {
	WriteResult(dir string, result fixloop.Result) (string, error)
	WriteAudit(dir string, result fixloop.Result) (string, error)
}

// SummaryRenderer renders a run summary for humans, to a stream and to the
// summary artifact file.
type SummaryRenderer interface {
	Render(w io.Writer, result fixloop.Result) error
	WriteFile(dir string, result fixloop.Result) (string, error)
}

// Dependencies carries everything the command tree needs.
type Dependencies struct {
	Runner        Runner
	LoadStudy     func(path string) (tabular.Study, error)
	Evaluators    []validate.RuleEvaluator
	Results       ResultWriter
	Summary       SummaryRenderer
	Out           io.Writer
	// IsTerminal reports whether Out is attached to a terminal. The run
	// command renders the human summary on terminals and raw result JSON on
	// pipes. Nil means not a terminal.
	IsTerminal    func() bool
	OutputDir     string
	MaxIterations int
	Version       string
}

func (d Dependencies) validate() error {
	if d.Runner == nil {
		return errors.New("runner is required")
	}
	if d.LoadStudy == nil {
		return errors.New("study loader is required")
	}
	if d.Results == nil {
		return errors.New("result writer is required")
	}
	if d.Summary == nil {
		return errors.New("summary renderer is required")
	}
	if d.Out == nil {
		return errors.New("output writer is required")
	}
	return nil
}

// NewRootCommand builds the root command with its subcommands attached.
func NewRootCommand(deps Dependencies) (*cobra.Command, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid CLI dependencies: %w", err)
	}

	var showVersion bool

	root := &cobra.Command{
		Use:           "conform",
		Short:         "Validate and auto-remediate study datasets",
		Long:          "conform validates tabular study datasets against their mapping specifications,\napplies deterministic fixes for machine-fixable issues, and reports what remains.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(deps.Out, deps.Version)
				return ErrVersionRequested
			}
			return cmd.Help()
		},
	}
	root.PersistentFlags().BoolVar(&showVersion, "version", false, "print version and exit")
	root.SetOut(deps.Out)
	root.SetErr(deps.Out)

	root.AddCommand(newRunCommand(deps))
	root.AddCommand(newRulesCommand(deps))

	return root, nil
}
