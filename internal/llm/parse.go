package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Model output is JSON most of the time, but fences, prose preambles, and
// trailing commas show up often enough that a direct unmarshal is not
// reliable. Decode tries progressively more forgiving strategies.
var (
	codeFenceRe     = regexp.MustCompile("(?s)`{3}(?:json)?\\s*\\n?([\\s\\S]*?)\\n?`{3}")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	objectRe        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRe         = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// Decode parses model output into T. Strategy sequence: direct parse, strip
// markdown code fences, remove trailing commas, extract the first JSON
// object or array from surrounding prose.
func Decode[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty model output")
	}

	if v, err := tryUnmarshal[T](trimmed); err == nil {
		return v, nil
	}

	unfenced := strings.TrimSpace(codeFenceRe.ReplaceAllString(trimmed, "$1"))
	if v, err := tryUnmarshal[T](unfenced); err == nil {
		return v, nil
	}

	cleaned := trailingCommaRe.ReplaceAllString(unfenced, "$1")
	if v, err := tryUnmarshal[T](cleaned); err == nil {
		return v, nil
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if v, err := tryUnmarshal[T](extracted); err == nil {
			return v, nil
		}
	}

	preview := text
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return zero, fmt.Errorf("model output is not valid JSON: %s", preview)
}

func tryUnmarshal[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

// extractJSON pulls the outermost JSON object or array out of mixed content.
// The leading-character check keeps an array from being narrowed to its
// first element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		return arrayRe.FindString(trimmed)
	}
	if m := objectRe.FindString(text); m != "" {
		return m
	}
	return arrayRe.FindString(text)
}
