package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// NewFollowUpCommand creates the follow-up command
func NewFollowUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow-up [question]",
		Short: "Ask a question about an existing report",
		Long: `Answer a follow-up question using only the content of a prior report.

The report comes from a Markdown file (--report) or from a stored run
(--run). With --questions, suggested follow-up questions are printed
instead and no question argument is needed.

Examples:
  deepresearch follow-up --report report.md "What drives spring tides?"
  deepresearch follow-up --run 3f2c... "Which sources disagree?"
  deepresearch follow-up --report report.md --questions`,
		RunE: runFollowUp,
	}

	cmd.Flags().String("report", "", "Markdown report file to answer from")
	cmd.Flags().String("run", "", "ID of a stored research run to answer from")
	cmd.Flags().String("topic", "", "Original topic (defaults to the stored run's topic)")
	cmd.Flags().Bool("questions", false, "Suggest follow-up questions instead of answering one")

	return cmd
}

func runFollowUp(cmd *cobra.Command, args []string) error {
	reportPath, _ := cmd.Flags().GetString("report")
	runID, _ := cmd.Flags().GetString("run")
	topic, _ := cmd.Flags().GetString("topic")
	suggest, _ := cmd.Flags().GetBool("questions")

	if (reportPath == "") == (runID == "") {
		return errors.New("exactly one of --report or --run is required")
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if !suggest && question == "" {
		return errors.New("a question is required (or use --questions)")
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var report string
	if runID != "" {
		res, err := a.svc.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		report = res.Artifact
		if topic == "" {
			topic = res.Metadata.Subject
		}
	} else {
		data, err := os.ReadFile(reportPath)
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}
		report = string(data)
	}

	out := cmd.OutOrStdout()
	if suggest {
		questions, err := a.svc.FollowUpQuestions(ctx, topic, report)
		if err != nil {
			return err
		}
		for i, q := range questions {
			fmt.Fprintf(out, "%d. %s\n", i+1, q)
		}
		return nil
	}

	step, err := a.svc.RunFollowUp(ctx, models.FollowUpRequest{Topic: topic, PriorReport: report, Question: question})
	if err != nil {
		return err
	}
	newPrinter(cmd.ErrOrStderr()).Step(step)
	fmt.Fprintln(out, step.Output)
	return nil
}
