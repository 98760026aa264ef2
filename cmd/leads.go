package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Review and edit stored leads",
	Long:  "Commands for listing, adding, inspecting, editing and deleting leads.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.LeadFilter{
			Status: model.LeadStatus(status),
			Limit:  limit,
			Offset: offset,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("leads list: unknown status %q", status)
		}

		leads, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

// -- leads add --

var leadsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a lead by URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw := strings.TrimSpace(args[0])
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return eris.Errorf("leads add: %q is not an absolute http(s) url", raw)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fields := store.LeadFields{
			Status:      store.Ptr(model.LeadStatusNew),
			ScrapedData: &model.ScrapedData{Source: model.LeadSourceManual},
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			fields.CompanyName = &name
		}

		lead, err := st.Create(ctx, raw, fields)
		if err != nil {
			return eris.Wrap(err, "leads add")
		}
		return printJSON(lead)
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetByID(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		return printJSON(lead)
	},
}

// -- leads draft --

var leadsDraftCmd = &cobra.Command{
	Use:   "draft <lead-id>",
	Short: "Replace the email draft of a lead",
	Long:  "Replaces the stored email draft with --text, or with the contents of --file (- reads stdin).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		draft, err := readDraft(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.UpdateByID(ctx, args[0], store.LeadFields{EmailDraft: &draft})
		if err != nil {
			return eris.Wrap(err, "leads draft")
		}
		return printJSON(lead)
	},
}

// readDraft returns the draft text from --text or --file.
func readDraft(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")

	switch {
	case text != "" && file != "":
		return "", eris.New("leads draft: use either --text or --file")
	case text != "":
		return text, nil
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", eris.Wrap(err, "leads draft: read stdin")
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", eris.Wrapf(err, "leads draft: read %s", file)
		}
		return string(b), nil
	default:
		return "", eris.New("leads draft: --text or --file is required")
	}
}

// -- leads mark --

var leadsMarkCmd = &cobra.Command{
	Use:   "mark <lead-id> <status>",
	Short: "Set the status of a lead (new, analyzed, contacted)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.LeadStatus(args[1])
		if !status.Valid() {
			return eris.Errorf("leads mark: unknown status %q", args[1])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.UpdateByID(ctx, args[0], store.LeadFields{Status: &status})
		if err != nil {
			return eris.Wrap(err, "leads mark")
		}
		return printJSON(lead)
	},
}

// -- leads delete --

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteByID(ctx, args[0]); err != nil {
			return eris.Wrap(err, "leads delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted lead %s.\n", args[0])
		return nil
	},
}

func init() {
	leadsListCmd.Flags().String("status", "", "filter by status (new, analyzed, contacted)")
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")
	leadsListCmd.Flags().Int("offset", 0, "number of leads to skip")

	leadsAddCmd.Flags().String("name", "", "company name")

	leadsDraftCmd.Flags().String("text", "", "new draft text")
	leadsDraftCmd.Flags().String("file", "", "read the draft from a file (- for stdin)")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsAddCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsDraftCmd)
	leadsCmd.AddCommand(leadsMarkCmd)
	leadsCmd.AddCommand(leadsDeleteCmd)
	rootCmd.AddCommand(leadsCmd)
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSTATUS\tOPPORTUNITIES\tDRAFT\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-------------\t-----\t-------")

	for _, l := range leads {
		company := l.CompanyName
		if company == "" {
			company = l.URL
		}

		opps := "-"
		if l.AIAnalysis != nil {
			opps = strconv.Itoa(len(l.AIAnalysis.Opportunities))
		}

		draft := "no"
		if strings.TrimSpace(l.EmailDraft) != "" {
			draft = "yes"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			truncate(company, 30),
			l.Status,
			opps,
			draft,
			l.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
