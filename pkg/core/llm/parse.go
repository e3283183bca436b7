package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}|\[.*\]`)

var fenceLangs = map[string]bool{
	"json": true, "javascript": true, "ts": true, "typescript": true, "python": true,
}

// extractJSON pulls a JSON document out of model output. Models wrap JSON in
// markdown fences or prose often enough that a strict-first, salvage-second
// parse is required. Returns false when no parseable JSON exists anywhere in
// the text.
func extractJSON(text string, v any) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}

	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		var candidates []string
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) > 0 {
			fenced := candidates[0]
			if len(candidates) > 1 {
				fenced = candidates[1]
			}
			lines := strings.Split(fenced, "\n")
			if len(lines) > 0 && fenceLangs[strings.ToLower(strings.TrimSpace(lines[0]))] {
				fenced = strings.Join(lines[1:], "\n")
			}
			if json.Unmarshal([]byte(fenced), v) == nil {
				return true
			}
		}
	}

	if m := jsonBlockRe.FindString(text); m != "" {
		if json.Unmarshal([]byte(m), v) == nil {
			return true
		}
	}
	return false
}
