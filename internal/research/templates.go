package research

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// TemplateData is what step prompts are rendered from. Research holds the
// primary research output of whichever mode is running.
type TemplateData struct {
	Topic     string
	Research  string
	FactCheck string
	Analysis  string
	Insights  string
	Summary   string
	Report    string
	Question  string

	// Outputs holds every prior step output by step name.
	Outputs map[string]string
}

// Built-in prompts. A key of the form "mode/step" takes precedence over "step".
var defaultTemplates = map[string]string{
	models.StepMainResearch: `Conduct comprehensive research on the topic: "{{.Topic}}"

Please provide a detailed but concise research report including:
1. Basic facts and overview
2. Key historical information
3. Current status and recent developments
4. Important figures or entities involved
5. Key insights and analysis
6. Practical implications

Focus on accuracy and relevance. Provide a well-structured response suitable for someone wanting to understand this topic thoroughly.`,

	models.StepInitialResearch: `Conduct comprehensive research on the topic: "{{.Topic}}"

Please provide detailed information including:
1. Basic facts and overview
2. Key historical information
3. Current status and developments
4. Important figures or entities involved
5. Recent news or updates
6. Relevant statistics or data

Provide accurate, well-structured information that would be useful for someone wanting to understand this topic thoroughly.`,

	models.StepFactCheck: `Review the following research content for accuracy and completeness:

{{.Research}}

Please:
1. Identify any claims that need verification
2. Point out potential inaccuracies or biases
3. Suggest additional reliable sources
4. Highlight any missing important information
5. Provide confidence levels for key facts

Focus on ensuring the information is reliable and well-sourced.`,

	models.StepAnalysis: `Perform a deep analysis of the following research content:

{{.Research}}
{{if .FactCheck}}
Fact check notes:
{{.FactCheck}}
{{end}}
Please provide:
1. Critical analysis of the key points
2. Connections between different aspects
3. Broader implications and context
4. Potential controversies or debates
5. Comparative analysis with related topics
6. Future trends or developments

Provide thoughtful insights that go beyond the surface-level information.`,

	models.StepInsights: `Based on the following research data, generate key insights:

{{.Research}}
{{if .Analysis}}
Analysis:
{{.Analysis}}
{{end}}
Please identify:
1. The most important takeaways
2. Surprising or counterintuitive findings
3. Patterns or trends that emerge
4. Practical applications or implications
5. Questions that arise from the research
6. Areas requiring further investigation

Focus on actionable insights and meaningful conclusions.`,

	models.StepSummarize: `Create a comprehensive summary of the following research:

{{.Research}}
{{if .Insights}}
Insights:
{{.Insights}}
{{end}}
Provide:
1. Executive summary (2-3 sentences)
2. Key findings (bullet points)
3. Main conclusions
4. Important context
5. Significance of the findings

Keep it concise but comprehensive, suitable for someone who wants a quick overview.`,

	models.ModeFast + "/" + models.StepSummarize: `Create a concise summary of the following research about "{{.Topic}}":

{{.Research}}

Provide:
1. Executive summary (2-3 sentences)
2. Key findings (3-5 bullet points)
3. Main conclusion
4. Significance

Keep it brief but informative.`,

	models.StepCompile: `Compile a final research report on "{{.Topic}}" based on the following components:

Research Content: {{.Research}}
Fact Check Results: {{.FactCheck}}
Analysis: {{.Analysis}}
Insights: {{.Insights}}

Create a well-structured, professional report that includes:
1. Executive Summary
2. Introduction
3. Key Findings
4. Detailed Analysis
5. Insights and Implications
6. Conclusions
7. Areas for Further Research

Format the report in markdown with clear headings and structure.`,

	models.StepFollowUp: `You are an AI research assistant. You previously conducted research on the topic: "{{.Topic}}".
Based on the research report below, answer the follow-up question as thoroughly as possible.

ORIGINAL RESEARCH REPORT:
{{.Report}}

FOLLOW-UP QUESTION:
{{.Question}}

Please provide a detailed answer to the follow-up question based ONLY on the information in the original research report.`,

	models.StepFollowUpQs: `Based on this research on "{{.Topic}}":

{{.Report}}

Generate 5 insightful follow-up questions that would:
1. Explore unexplored aspects
2. Dive deeper into interesting findings
3. Challenge assumptions
4. Connect different concepts
5. Investigate practical applications

Return the questions as a JSON array of 5 strings and nothing else.`,
}

// Templates renders step prompts.
type Templates struct {
	set map[string]*template.Template
}

// NewTemplates parses the built-in prompts with overrides applied on top.
func NewTemplates(overrides map[string]string) (*Templates, error) {
	sources := make(map[string]string, len(defaultTemplates)+len(overrides))
	for k, v := range defaultTemplates {
		sources[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			sources[k] = v
		}
	}

	t := &Templates{set: make(map[string]*template.Template, len(sources))}
	for name, src := range sources {
		tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t.set[name] = tmpl
	}
	return t, nil
}

// Has reports whether a template exists for step in mode.
func (t *Templates) Has(mode, step string) bool {
	return t.lookup(mode, step) != nil
}

func (t *Templates) lookup(mode, step string) *template.Template {
	if mode != "" {
		if tmpl, ok := t.set[mode+"/"+step]; ok {
			return tmpl
		}
	}
	return t.set[step]
}

// Render executes the template for step.
func (t *Templates) Render(mode, step string, data TemplateData) (string, error) {
	tmpl := t.lookup(mode, step)
	if tmpl == nil {
		return "", fmt.Errorf("no prompt template for step %q", step)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", step, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
