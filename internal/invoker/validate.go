package invoker

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidOutput marks responses that arrived but are not usable.
var ErrInvalidOutput = errors.New("invalid backend output")

// Validator rejects empty, short or error-shaped responses.
type Validator struct {
	MinChars     int
	ErrorPhrases []string
}

// NewValidator lowercases phrases once.
func NewValidator(minChars int, phrases []string) Validator {
	lower := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return Validator{MinChars: minChars, ErrorPhrases: lower}
}

// Check returns an error wrapping ErrInvalidOutput when out is unusable for p.
func (v Validator) Check(p Payload, out Output) error {
	if p.IsImage() {
		if len(out.Image) == 0 {
			return fmt.Errorf("%w: empty image", ErrInvalidOutput)
		}
		if ct := http.DetectContentType(out.Image); !strings.HasPrefix(ct, "image/") {
			return fmt.Errorf("%w: image payload sniffed as %s", ErrInvalidOutput, ct)
		}
		return nil
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return fmt.Errorf("%w: empty response", ErrInvalidOutput)
	}
	if len([]rune(text)) < v.MinChars {
		return fmt.Errorf("%w: response shorter than %d characters", ErrInvalidOutput, v.MinChars)
	}
	lower := strings.ToLower(text)
	for _, phrase := range v.ErrorPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return fmt.Errorf("%w: response contains %q", ErrInvalidOutput, phrase)
		}
	}
	return nil
}
