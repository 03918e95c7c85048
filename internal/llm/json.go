package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// ParseJSONResponse parses a JSON object from an LLM reply, handling markdown
// code fences and surrounding prose.
func ParseJSONResponse(text string) map[string]any {
	text = stripFences(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err == nil {
			return result
		}
	}

	logging.Debug("failed to parse LLM response as JSON object", "chars", len(text))
	return nil
}

var arrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseJSONArray decodes the first [...] block of an LLM reply into out.
// It reports whether decoding succeeded.
func ParseJSONArray(text string, out any) bool {
	match := arrayPattern.FindString(stripFences(text))
	if match == "" {
		return false
	}
	if err := json.Unmarshal([]byte(match), out); err != nil {
		logging.Debug("failed to parse LLM response as JSON array", "error", err)
		return false
	}
	return true
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
