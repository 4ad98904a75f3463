package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// NewImageCommand creates the image command
func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image and write it as PNG",
		Long: `Run the image pipeline: optimize the prompt, pick parameters for the
detected device, generate, and on out-of-memory errors retry smaller and
then on CPU. If every attempt fails a placeholder PNG describing the error
is written instead, and the command still exits 0.

Examples:
  deepresearch image "a lighthouse at dusk, oil painting"
  deepresearch image --width 768 --height 512 -o out.png "a red fox"
  deepresearch image --refine --cpu "draw a castle"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImage,
	}

	cmd.Flags().StringP("output", "o", "image.png", "Output PNG path")
	cmd.Flags().String("negative", "", "Negative prompt")
	cmd.Flags().Int("width", 0, "Image width in pixels (0 = config default)")
	cmd.Flags().Int("height", 0, "Image height in pixels (0 = config default)")
	cmd.Flags().Int("steps", 0, "Inference steps (0 = config default)")
	cmd.Flags().Float64("guidance", 0, "Guidance scale (0 = config default)")
	cmd.Flags().Bool("refine", false, "Refine the prompt with a text model first")
	cmd.Flags().Bool("cpu", false, "Force CPU generation")
	cmd.Flags().Int("token-budget", 0, "Maximum estimated prompt tokens (overrides config)")

	return cmd
}

func runImage(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	flags := cmd.Flags()
	req := models.ImageRequest{Prompt: strings.Join(args, " ")}
	req.NegativePrompt, _ = flags.GetString("negative")
	req.Width, _ = flags.GetInt("width")
	req.Height, _ = flags.GetInt("height")
	req.Steps, _ = flags.GetInt("steps")
	req.Guidance, _ = flags.GetFloat64("guidance")
	req.Refine, _ = flags.GetBool("refine")

	p := newPrinter(cmd.ErrOrStderr())
	p.Title("Generating %q", req.Prompt)

	res, err := a.svc.RunImageGenerationObserved(cmd.Context(), req, a.logStep)
	if err != nil {
		return err
	}
	p.Summary(res)

	output, _ := flags.GetString("output")
	if err := os.WriteFile(output, res.Image, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	what := "Image"
	if fin, ok := res.Step(models.StepFinalize); ok && !fin.OK() {
		what = "Placeholder image"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", what, output)
	return nil
}
