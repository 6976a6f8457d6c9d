package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawright/conform/internal/usecase/fixloop"
)

func newRunCommand(deps Dependencies) *cobra.Command {
	var (
		studyPath     string
		studyID       string
		maxIterations int
		outputDir     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validate-and-fix loop over a study",
		RunE: func(cmd *cobra.Command, args []string) error {
			study, err := deps.LoadStudy(studyPath)
			if err != nil {
				return fmt.Errorf("failed to load study: %w", err)
			}
			if studyID == "" {
				studyID = study.ID
			}

			result, err := deps.Runner.Run(cmd.Context(), fixloop.Request{
				StudyID:       studyID,
				Domains:       study.Domains,
				MaxIterations: maxIterations,
			})
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			resultPath, err := deps.Results.WriteResult(outputDir, result)
			if err != nil {
				return err
			}
			auditPath, err := deps.Results.WriteAudit(outputDir, result)
			if err != nil {
				return err
			}
			summaryPath, err := deps.Summary.WriteFile(outputDir, result)
			if err != nil {
				return err
			}

			if deps.IsTerminal != nil && deps.IsTerminal() {
				if err := deps.Summary.Render(deps.Out, result); err != nil {
					return err
				}
				fmt.Fprintf(deps.Out, "\nResult:  %s\nAudit:   %s\nSummary: %s\n", resultPath, auditPath, summaryPath)
			} else {
				// Piped output gets the machine-readable result.
				enc := json.NewEncoder(deps.Out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}

			if !result.FinalReport.SubmissionReady {
				return fmt.Errorf("study %s is not submission ready: %d effective error(s) remain",
					studyID, result.FinalReport.Effective.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&studyPath, "study", "", "path to the study YAML file (required)")
	cmd.Flags().StringVar(&studyID, "study-id", "", "override the study identifier")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", deps.MaxIterations, "fix loop iteration budget")
	cmd.Flags().StringVar(&outputDir, "output", deps.OutputDir, "directory for result artifacts")
	cmd.MarkFlagRequired("study")

	return cmd
}
