package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// NewResearchCommand creates the research command
func NewResearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research <topic>",
		Short: "Research a topic and print the report",
		Long: `Run the research pipeline on a topic and print the Markdown report.

Progress for each step is written to stderr; the report goes to stdout
unless --output is given. Steps whose models all fail are marked degraded
and the report notes what is missing.

Examples:
  deepresearch research "ocean tides"
  deepresearch research --fast "history of the transistor"
  deepresearch research -o report.md "battery chemistry"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResearch,
	}

	cmd.Flags().Bool("fast", false, "Fast mode: main research and summary only")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func runResearch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	topic := strings.Join(args, " ")
	fast, _ := cmd.Flags().GetBool("fast")
	mode := models.ModeComprehensive
	if fast {
		mode = models.ModeFast
	}

	p := newPrinter(cmd.ErrOrStderr())
	p.Title("Researching %q (%s)", topic, mode)

	res, err := a.svc.RunResearchObserved(cmd.Context(), topic, fast, a.logStep)
	if err != nil {
		return err
	}
	p.Summary(res)

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Artifact)
		return nil
	}
	if err := os.WriteFile(output, []byte(res.Artifact), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", output)
	return nil
}
