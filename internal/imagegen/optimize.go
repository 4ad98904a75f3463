package imagegen

import (
	"regexp"
	"strings"
)

// tokenPattern approximates CLIP tokenization: each word and each
// punctuation mark counts as one token.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// qualityModifiers are kept in place of clauses that no longer fit.
var qualityModifiers = []string{
	"high quality", "detailed", "realistic", "photorealistic", "masterpiece",
	"best quality", "ultra detailed", "4k", "8k", "hdr", "cinematic",
	"professional", "sharp focus", "beautiful", "stunning", "vibrant",
}

// EstimateTokens counts prompt tokens.
func EstimateTokens(s string) int {
	return len(tokenPattern.FindAllStringIndex(s, -1))
}

// OptimizePrompt fits prompt into budget tokens. The first comma-separated
// clause (the subject) is always kept; later clauses are added while they
// fit, and a clause that does not fit may be replaced by a quality modifier
// it mentions. Anything still over budget is hard-truncated.
func OptimizePrompt(prompt string, budget int) string {
	if budget <= 0 || EstimateTokens(prompt) <= budget {
		return prompt
	}

	var parts []string
	for _, part := range strings.Split(prompt, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	kept := make([]string, 0, len(parts))
	current := 0
clauses:
	for i, part := range parts {
		partTokens := EstimateTokens(part)
		switch {
		case i == 0:
			kept = append(kept, part)
			current += partTokens
		case current+partTokens+2 <= budget:
			// +2 for the separator
			kept = append(kept, part)
			current += partTokens + 2
		default:
			lower := strings.ToLower(part)
			for _, modifier := range qualityModifiers {
				cost := EstimateTokens(modifier) + 2
				if strings.Contains(lower, modifier) && current+cost <= budget {
					kept = append(kept, modifier)
					current += cost
					break
				}
			}
			if current >= budget-5 {
				break clauses
			}
		}
	}

	optimized := strings.Join(kept, ", ")
	if EstimateTokens(optimized) > budget {
		optimized = TruncatePrompt(optimized, budget)
	}
	return optimized
}

var punctSpacing = strings.NewReplacer(" ,", ",", " .", ".", " ;", ";")

// TruncatePrompt keeps the first budget-3 tokens, leaving headroom for
// tokenizer differences.
func TruncatePrompt(prompt string, budget int) string {
	if EstimateTokens(prompt) <= budget {
		return prompt
	}
	keep := budget - 3
	if keep < 1 {
		keep = 1
	}
	tokens := tokenPattern.FindAllString(prompt, -1)
	if keep > len(tokens) {
		keep = len(tokens)
	}
	return punctSpacing.Replace(strings.Join(tokens[:keep], " "))
}
