package research

import (
	"fmt"
	"strings"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// FastReport assembles the fast-mode report.
func FastReport(topic, summary, research string) string {
	if summary == "" {
		summary = "Summary not available"
	}
	if research == "" {
		research = "Research data not available"
	}
	return fmt.Sprintf(`# Research Report: %s

## Summary
%s

## Detailed Research
%s

---
*This report was generated using fast research mode for quicker results.*
`, topic, summary, research)
}

// LocalReport assembles a comprehensive report without a model, from
// whatever step outputs exist.
func LocalReport(topic string, outputs map[string]string) string {
	get := func(step, missing string) string {
		if v := strings.TrimSpace(outputs[step]); v != "" {
			return v
		}
		return missing
	}
	return fmt.Sprintf(`# Research Report on %s

## Summary
%s

## Research Findings
%s

## Analysis
%s

## Insights
%s

*Note: This report was generated with limited functionality due to technical issues.*
`, topic,
		get(models.StepSummarize, "Summary could not be generated due to technical issues."),
		get(models.StepInitialResearch, get(models.StepMainResearch, "Initial research could not be completed due to technical issues.")),
		get(models.StepAnalysis, "Analysis could not be completed due to technical issues."),
		get(models.StepInsights, "Insights could not be generated due to technical issues."))
}

// DegradedNotice lists the steps that fell back. It returns "" when all steps succeeded.
func DegradedNotice(steps []models.StepResult) string {
	var affected []string
	for _, s := range steps {
		if s.Status != models.StatusOk && s.Step != models.StepFinalize {
			affected = append(affected, s.Step)
		}
	}
	truncated := false
	for _, s := range steps {
		if s.Step == models.StepFinalize {
			truncated = true
		}
	}
	if len(affected) == 0 && !truncated {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("> **Notice:** ")
	if len(affected) > 0 {
		fmt.Fprintf(&sb, "The research service was unavailable for: %s. Those sections contain fallback text.", strings.Join(affected, ", "))
	}
	if truncated {
		if len(affected) > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("The time budget ran out and the remaining steps were unavailable.")
	}
	return sb.String()
}
