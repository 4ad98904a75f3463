package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for deepresearch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepresearch",
		Short: "Resilient multi-stage research and image generation",
		Long: `deepresearch runs staged text and image generation pipelines that
degrade gracefully instead of failing.

Research requests go through main research, analysis, fact-checking and
summarization steps, each with an ordered list of fallback models. Image
requests optimize the prompt, pick parameters for the available device and
step down to smaller sizes or CPU on out-of-memory errors, returning a
placeholder image when every attempt fails.

Configuration is loaded from .deepresearch/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .deepresearch/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("log-dir", "", "Directory for log files (empty string keeps the config value)")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewResearchCommand())
	cmd.AddCommand(NewFollowUpCommand())
	cmd.AddCommand(NewImageCommand())
	cmd.AddCommand(NewRefineCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewBotCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
