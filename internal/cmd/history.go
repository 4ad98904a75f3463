package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/server"
)

// NewHistoryCommand creates the history command with list and show subcommands
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored runs",
		Long: `List and show runs stored in the history database.

History is enabled by default and kept in history.db inside the state
directory; set history.driver to pgx and history.dsn to a PostgreSQL URL
to share it between servers.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			kind, _ := cmd.Flags().GetString("kind")
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := a.svc.ListRuns(cmd.Context(), history.ListOptions{Kind: kind, Limit: limit})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.Kind,
					string(r.Status),
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Elapsed.Round(time.Second).String(),
					truncateText(r.Subject, 48),
				})
			}
			newPrinter(cmd.OutOrStdout()).Table(
				[]string{"ID", "KIND", "STATUS", "CREATED", "ELAPSED", "TOPIC"}, rows)
			return nil
		},
	}

	cmd.Flags().String("kind", "", "Only show runs of this kind (research, follow_up, image)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored run",
		Long: `Print a stored run's steps and report. --json prints the full record;
--html writes the report as a standalone HTML page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			if htmlPath, _ := cmd.Flags().GetString("html"); htmlPath != "" {
				page, err := server.RenderReportHTML(goldmark.New(goldmark.WithExtensions(extension.GFM)), res)
				if err != nil {
					return err
				}
				if err := os.WriteFile(htmlPath, page, 0644); err != nil {
					return fmt.Errorf("failed to write HTML report: %w", err)
				}
				fmt.Fprintf(out, "Report written to %s\n", htmlPath)
				return nil
			}

			p := newPrinter(out)
			p.Title("%s: %s", res.Kind, res.Metadata.Subject)
			for _, s := range res.Steps {
				p.Step(s)
			}
			p.Summary(res)
			fmt.Fprintln(out)
			fmt.Fprintln(out, res.Artifact)
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print the full run as JSON")
	cmd.Flags().String("html", "", "Write the report as HTML to this file")

	return cmd
}

func truncateText(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-3]) + "..."
}
