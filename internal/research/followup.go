package research

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/priyansh1913/open-deep-research-web/internal/executor"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// QuestionCount is how many follow-up questions are suggested.
const QuestionCount = 5

// DefaultQuestions are suggested when generation fails.
var DefaultQuestions = []string{
	"What are the major challenges in this field?",
	"How might this research be applied in practice?",
	"What are the future implications of these findings?",
	"How does this compare to alternative approaches?",
	"What are the key limitations of current research?",
}

// FollowUp answers question using only priorReport as context.
func (p *Pipeline) FollowUp(ctx context.Context, topic, priorReport, question string) models.StepResult {
	prompt, err := p.templates.Render("", models.StepFollowUp, TemplateData{
		Topic:    topic,
		Report:   priorReport,
		Question: question,
	})
	if err != nil {
		return models.StepResult{
			Step:       models.StepFollowUp,
			Output:     executor.FallbackMessage(models.StepFollowUp),
			Status:     models.StatusDegraded,
			Diagnostic: executor.NewStepError(models.StepFollowUp, "prompt rendering failed", err).Error(),
		}
	}
	return p.runner.Execute(ctx, models.StepFollowUp, p.cfg.Candidates(models.StepFollowUp), invoker.Payload{Prompt: prompt})
}

// FollowUpQuestions suggests QuestionCount questions about a report. The
// default list is returned whenever the model output is unusable.
func (p *Pipeline) FollowUpQuestions(ctx context.Context, topic, report string) ([]string, models.StepResult) {
	fallback := strings.Join(DefaultQuestions, "\n")

	prompt, err := p.templates.Render("", models.StepFollowUpQs, TemplateData{Topic: topic, Report: report})
	if err != nil {
		return append([]string(nil), DefaultQuestions...), models.StepResult{
			Step:       models.StepFollowUpQs,
			Output:     fallback,
			Status:     models.StatusDegraded,
			Diagnostic: executor.NewStepError(models.StepFollowUpQs, "prompt rendering failed", err).Error(),
		}
	}

	res := p.runner.Execute(ctx, models.StepFollowUpQs, p.cfg.Candidates(models.StepFollowUpQs),
		invoker.Payload{Prompt: prompt}, executor.WithFallback(fallback))
	if !res.OK() {
		return append([]string(nil), DefaultQuestions...), res
	}

	questions := ParseQuestions(res.Output)
	if len(questions) == 0 {
		res.Status = models.StatusDegraded
		res.Diagnostic = "model output contained no questions"
		res.Output = fallback
		return append([]string(nil), DefaultQuestions...), res
	}
	return questions, res
}

var (
	codeFence    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	listPrefix   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)]|Q\d+[:.)])\s*`)
	questionWrap = regexp.MustCompile(`^["']|["',]+$`)
)

// ParseQuestions extracts at most QuestionCount questions from model output.
// It accepts a JSON array (repairing it if needed), an object with a
// "questions" array, or one question per line.
func ParseQuestions(text string) []string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	if qs := parseJSONQuestions(text); len(qs) > 0 {
		return limit(qs)
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		line = strings.TrimSpace(questionWrap.ReplaceAllString(line, ""))
		if line == "" || line == "[" || line == "]" {
			continue
		}
		out = append(out, line)
	}
	return limit(out)
}

func parseJSONQuestions(text string) []string {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil
	}
	candidate := text[start:]

	if qs, ok := decodeQuestions(candidate); ok {
		return qs
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil
	}
	qs, _ := decodeQuestions(repaired)
	return qs
}

func decodeQuestions(data string) ([]string, bool) {
	var arr []string
	if err := json.Unmarshal([]byte(data), &arr); err == nil {
		return clean(arr), true
	}
	var obj struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(data), &obj); err == nil && len(obj.Questions) > 0 {
		return clean(obj.Questions), true
	}
	return nil, false
}

func clean(qs []string) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func limit(qs []string) []string {
	if len(qs) > QuestionCount {
		return qs[:QuestionCount]
	}
	return qs
}
