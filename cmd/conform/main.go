// Command conform validates study datasets, applies deterministic fixes, and
// reports what remains for human review.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datawright/conform/internal/adapter/cli"
	"github.com/datawright/conform/internal/adapter/observability"
	jsonout "github.com/datawright/conform/internal/adapter/output/json"
	textout "github.com/datawright/conform/internal/adapter/output/text"
	"github.com/datawright/conform/internal/adapter/store/sqlite"
	"github.com/datawright/conform/internal/adapter/tabular"
	"github.com/datawright/conform/internal/config"
	"github.com/datawright/conform/internal/usecase/classify"
	"github.com/datawright/conform/internal/usecase/fixloop"
	"github.com/datawright/conform/internal/usecase/remediate"
	"github.com/datawright/conform/internal/usecase/validate"
	"github.com/datawright/conform/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.NewLoader().Load(os.Getenv("CONFORM_CONFIG"))
	if err != nil {
		return err
	}

	var logger *observability.DefaultLogger
	if cfg.Observability.Logging.Enabled {
		logger = observability.NewDefaultLogger(
			observability.ParseLevel(cfg.Observability.Logging.Level),
			observability.ParseFormat(cfg.Observability.Logging.Format),
		)
	}

	evaluators := validate.DefaultEvaluators()
	engine := validate.NewEngine(evaluators)
	classifier := classify.NewClassifier()

	var remediateOpts []remediate.Option
	if logger != nil {
		remediateOpts = append(remediateOpts, remediate.WithLogger(logger))
	}
	remediator, err := remediate.NewRemediator(classifier, remediate.Config{
		StudyID:   cfg.Study.ID,
		Constants: cfg.Study.Constants,
	}, remediateOpts...)
	if err != nil {
		return err
	}

	deps := fixloop.Deps{
		Validator:  engine,
		Classifier: classifier,
		Remediator: remediator,
	}
	if logger != nil {
		deps.Logger = logger
	}
	if cfg.Store.Enabled {
		store, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
		deps.Store = store
	}

	root, err := cli.NewRootCommand(cli.Dependencies{
		Runner:        fixloop.NewOrchestrator(deps),
		LoadStudy:     tabular.LoadStudy,
		Evaluators:    evaluators,
		Results:       jsonout.NewWriter(),
		Summary:       textout.NewWriter(),
		Out:           os.Stdout,
		IsTerminal:    func() bool { return textout.IsTerminal(os.Stdout.Fd()) },
		OutputDir:     cfg.Output.Directory,
		MaxIterations: cfg.Loop.MaxIterations,
		Version:       version.Value(),
	})
	if err != nil {
		return err
	}

	return root.ExecuteContext(ctx)
}
