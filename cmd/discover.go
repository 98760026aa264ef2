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

var (
	discoverQuery string
	discoverJSON  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search the web for candidate companies and store new leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Discoverer.Discover(ctx, discoverQuery)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		if discoverJSON {
			return printJSON(report)
		}
		formatDiscoverReport(os.Stdout, report)
		return nil
	},
}

// formatDiscoverReport writes a table of discovery outcomes to out.
func formatDiscoverReport(out io.Writer, r *discovery.Report) {
	_, _ = fmt.Fprintf(out, "Query: %s\nAdded: %d of %d\n\n", r.Query, r.Added, len(r.Results))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OUTCOME\tTITLE\tURL\tNOTE")
	_, _ = fmt.Fprintln(w, "-------\t-----\t---\t----")
	for _, it := range r.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Outcome, truncate(it.Title, 40), it.URL, it.Error)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "search query (default discovery.default_query)")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(discoverCmd)
}
