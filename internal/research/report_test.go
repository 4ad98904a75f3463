package research

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

func TestFastReport(t *testing.T) {
	got := FastReport("bees", "short summary", "long research")
	want := "# Research Report: bees\n\n## Summary\nshort summary\n\n## Detailed Research\nlong research\n\n---\n*This report was generated using fast research mode for quicker results.*\n"
	assert.Equal(t, want, got)

	got = FastReport("bees", "", "")
	assert.Contains(t, got, "Summary not available")
	assert.Contains(t, got, "Research data not available")
}

func TestLocalReport(t *testing.T) {
	got := LocalReport("bees", map[string]string{
		models.StepSummarize:       "S",
		models.StepInitialResearch: "R",
		models.StepAnalysis:        "A",
	})

	assert.True(t, strings.HasPrefix(got, "# Research Report on bees\n"))
	assert.Contains(t, got, "## Summary\nS\n")
	assert.Contains(t, got, "## Research Findings\nR\n")
	assert.Contains(t, got, "## Analysis\nA\n")
	assert.Contains(t, got, "## Insights\nInsights could not be generated due to technical issues.")
	assert.Contains(t, got, "*Note: This report was generated with limited functionality due to technical issues.*")
}

func TestLocalReportUsesMainResearch(t *testing.T) {
	got := LocalReport("bees", map[string]string{models.StepMainResearch: "M"})
	assert.Contains(t, got, "## Research Findings\nM\n")
}

func TestDegradedNotice(t *testing.T) {
	ok := models.StepResult{Step: "a", Status: models.StatusOk}
	bad := models.StepResult{Step: "b", Status: models.StatusDegraded}
	fin := models.StepResult{Step: models.StepFinalize, Status: models.StatusDegraded}

	assert.Empty(t, DegradedNotice([]models.StepResult{ok}))
	assert.Contains(t, DegradedNotice([]models.StepResult{ok, bad}), "unavailable for: b.")

	both := DegradedNotice([]models.StepResult{bad, fin})
	assert.Contains(t, both, "unavailable for: b.")
	assert.Contains(t, both, "time budget ran out")
	assert.NotContains(t, both, "finalize")
}
