package executor

import (
	"fmt"
	"strings"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// UnavailableMessage is used when no step-specific text applies.
const UnavailableMessage = "The research assistant is currently unavailable."

// FallbackMessage returns the deterministic degraded output for step.
func FallbackMessage(step string) string {
	switch step {
	case models.StepMainResearch, models.StepInitialResearch:
		return "The research assistant encountered technical difficulties while researching this topic. Please try again later or refine your query."
	case models.StepFactCheck:
		return "Fact checking could not be completed due to technical limitations. Please verify information from reliable sources."
	case models.StepAnalysis:
		return "Analysis could not be completed at this time due to technical issues."
	case models.StepSummarize:
		return "A summary could not be generated due to technical difficulties."
	case models.StepFollowUp:
		return UnavailableMessage + " The follow-up question could not be answered."
	case models.StepGenerate, models.StepReduceAndRetry, models.StepCPURetry:
		return "Image generation could not be completed. A placeholder image describes the error."
	}
	return fmt.Sprintf("The %s operation could not be completed due to technical issues.", strings.ReplaceAll(step, "_", " "))
}
