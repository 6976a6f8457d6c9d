package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datawright/conform/internal/domain"
)

func newRulesCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the validation rules and their severities",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := make([]domain.Rule, 0, len(deps.Evaluators))
			for _, e := range deps.Evaluators {
				rules = append(rules, e.Rule())
			}
			sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

			w := tabwriter.NewWriter(deps.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tDESCRIPTION")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.Category, r.Description)
			}
			return w.Flush()
		},
	}
}
