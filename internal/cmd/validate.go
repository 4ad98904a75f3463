package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration and check for:
  - Unknown provider kinds and candidates naming missing providers
  - Steps used by a research mode without candidates
  - Invalid timeouts, budgets and image defaults
  - Provider and storage credentials missing from the environment

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfigWithOutput(cmd, cmd.OutOrStdout(), os.Getenv)
		},
		SilenceUsage: true,
	}

	return cmd
}

// validateConfigWithOutput validates the config with a custom output writer and environment (for testing)
func validateConfigWithOutput(cmd *cobra.Command, output io.Writer, getenv func(string) string) error {
	cfg, path, err := loadUnvalidatedConfig(cmd)
	if err != nil {
		fmt.Fprintf(output, "✗ %v\n", err)
		return err
	}
	fmt.Fprintf(output, "✓ Loaded configuration from %s\n", path)

	var errors []string

	if err := cfg.Validate(); err != nil {
		errors = append(errors, strings.Split(err.Error(), "\n")...)
	} else {
		fmt.Fprintf(output, "✓ Structure is valid\n")
	}

	if err := cfg.ResolveCredentials(getenv); err != nil {
		errors = append(errors, err.Error())
	} else {
		fmt.Fprintf(output, "✓ Credentials resolved\n")
	}

	printConfigSummary(cfg, output)

	if len(errors) == 0 {
		fmt.Fprintf(output, "\n✓ Configuration is valid!\n")
		return nil
	}

	fmt.Fprintf(output, "\n✗ Validation failed\n")
	for _, errMsg := range errors {
		fmt.Fprintf(output, "  ✗ %s\n", errMsg)
	}
	fmt.Fprintf(output, "\nFound %d validation error(s)!\n", len(errors))

	return fmt.Errorf("validation failed with %d error(s)", len(errors))
}

func printConfigSummary(cfg *config.Config, output io.Writer) {
	providers := make([]string, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers = append(providers, fmt.Sprintf("%s (%s)", name, p.Kind))
	}
	sort.Strings(providers)
	fmt.Fprintf(output, "  Providers: %s\n", strings.Join(providers, ", "))

	for _, name := range []string{models.ModeFast, models.ModeComprehensive} {
		mode, ok := cfg.Mode(name)
		if !ok {
			continue
		}
		fmt.Fprintf(output, "  Mode %s: %s (budget %s)\n", name, strings.Join(mode.Steps, " → "), mode.Budget)
	}

	generate := cfg.Candidates(models.StepGenerate)
	labels := make([]string, 0, len(generate))
	for _, c := range generate {
		labels = append(labels, c.Label())
	}
	fmt.Fprintf(output, "  Image candidates: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(output, "  Token budget: %d\n", cfg.TokenBudget)

	if cfg.History.Enabled {
		fmt.Fprintf(output, "  History: %s\n", cfg.History.Driver)
	}
	if cfg.Artifacts.Enabled {
		fmt.Fprintf(output, "  Artifacts: %s\n", cfg.Artifacts.Kind)
	}
}
