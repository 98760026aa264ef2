package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
)

var workflowJSON bool

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run one pass of the daily discovery and enrichment workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Workflow.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "workflow")
		}

		if workflowJSON {
			return printJSON(report)
		}
		formatWorkflowReport(os.Stdout, report)
		return nil
	},
}

// formatWorkflowReport writes a per-lead summary of a workflow pass to out.
func formatWorkflowReport(out io.Writer, r *discovery.WorkflowReport) {
	_, _ = fmt.Fprintf(out, "Niche: %s\nCandidates: %d  Processed: %d  Succeeded: %d  Skipped: %d\n\n",
		r.Niche, r.Candidates, len(r.Processed), r.Succeeded(), len(r.Skipped))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RESULT\tLEAD\tURL\tERROR")
	_, _ = fmt.Fprintln(w, "------\t----\t---\t-----")
	for _, it := range r.Processed {
		result := "ok"
		if !it.Success {
			result = "failed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result, truncateID(it.LeadID), it.URL, it.Error)
	}
	_ = w.Flush()
}

func init() {
	workflowCmd.Flags().BoolVar(&workflowJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(workflowCmd)
}
