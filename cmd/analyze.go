package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/enrich"
	"github.com/aiprodig/leadgen-cli/internal/model"
)

var (
	analyzeURL string
	analyzeID  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Enrich a single lead",
	Long:  "Fetches the site, runs optional research and inference, and stores the analysis and email draft. With --id the existing lead row is updated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Enricher.Run(ctx, enrich.Request{
			URL:    analyzeURL,
			ID:     analyzeID,
			Source: model.LeadSourceEnrich,
		})
		if err != nil {
			if result != nil {
				_ = printJSON(result)
			}
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("enrichment complete",
			zap.String("url", result.Lead.URL),
			zap.String("lead_id", result.Lead.ID),
			zap.String("company", result.Lead.CompanyName),
		)

		return printJSON(result)
	},
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "company website URL (required)")
	analyzeCmd.Flags().StringVar(&analyzeID, "id", "", "existing lead id to update")
	_ = analyzeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(analyzeCmd)
}
