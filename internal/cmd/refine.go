package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRefineCommand creates the refine command
func NewRefineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refine <prompt>",
		Short: "Rewrite an image prompt to be more descriptive",
		Long: `Ask a text model to expand an image prompt with subject, style and
lighting detail. If no model answers, the prompt is returned with leading
phrases such as "generate image of" removed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			refined, err := a.svc.RefinePrompt(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), refined)
			return nil
		},
	}
}
