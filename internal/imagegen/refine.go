package imagegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/priyansh1913/open-deep-research-web/internal/executor"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// commandPrefixes are stripped from prompts when refinement is unavailable.
var commandPrefixes = []string{"generate image of", "create image of", "make image of", "draw", "paint"}

const refineInstruction = `Rewrite the following request as a single prompt for a text-to-image model.
Describe the subject first, then style, lighting and composition as short comma-separated phrases.
Keep it under 60 words. Reply with the prompt only, without quotes or explanations.

Request: %s`

// CleanPrompt trims the prompt and removes leading command phrases such as
// "draw" or "create image of". Each prefix is removed at most once, in order.
func CleanPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	for _, prefix := range commandPrefixes {
		if len(prompt) >= len(prefix) && strings.EqualFold(prompt[:len(prefix)], prefix) {
			prompt = strings.TrimSpace(prompt[len(prefix):])
		}
	}
	return prompt
}

// Refine asks a text model to turn prompt into a better image prompt. On
// failure the step degrades to CleanPrompt(prompt).
func (p *Pipeline) Refine(ctx context.Context, prompt string) models.StepResult {
	fallback := CleanPrompt(prompt)
	payload := invoker.Payload{Prompt: fmt.Sprintf(refineInstruction, strings.TrimSpace(prompt))}

	res := p.runner.Execute(ctx, models.StepRefinePrompt, p.cfg.Candidates(models.StepRefinePrompt), payload,
		executor.WithFallback(fallback))
	if res.OK() {
		res.Output = tidyRefined(res.Output)
		if res.Output == "" {
			res.Output = fallback
		}
	}
	return res
}

// tidyRefined strips wrappers chat models tend to add around a prompt.
func tidyRefined(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(strings.ToLower(s), "prompt:"); i >= 0 && i < 20 {
		s = strings.TrimSpace(s[i+len("prompt:"):])
	}
	if line, _, ok := strings.Cut(s, "\n\n"); ok {
		s = line
	}
	return strings.Trim(s, "\"'` \n")
}
