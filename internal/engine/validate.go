package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Size limits for extracted facts.
const (
	maxInterestChars = 60
	maxMemoryChars   = 500
	maxFieldChars    = 280
	maxInterests     = 10
	maxMemories      = 10
	minMemoryChars   = 8
)

// noteCandidate is the JSON object the extraction prompt asks for.
type noteCandidate struct {
	Interests           []string `json:"interests"`
	Memories            []string `json:"memories"`
	WhereMet            string   `json:"where_met"`
	MostImportantToKnow string   `json:"most_important_to_know"`
}

// parseNoteResponse pulls the JSON object out of a model reply, tolerating
// markdown fences and chatter around it.
func parseNoteResponse(content string) (noteCandidate, error) {
	var c noteCandidate
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return c, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &c); err != nil {
		return c, fmt.Errorf("unmarshal note candidate: %w", err)
	}
	return c, nil
}

// validateCandidate trims, deduplicates and caps every field. Entries that
// are empty or too short to mean anything are dropped rather than failing
// the whole extraction.
func validateCandidate(c noteCandidate) noteCandidate {
	return noteCandidate{
		Interests:           cleanList(c.Interests, maxInterestChars, 1, maxInterests),
		Memories:            cleanList(c.Memories, maxMemoryChars, minMemoryChars, maxMemories),
		WhereMet:            truncateClean(collapseSpace(c.WhereMet), maxFieldChars),
		MostImportantToKnow: truncateClean(collapseSpace(c.MostImportantToKnow), maxFieldChars),
	}
}

// empty reports whether nothing survived validation.
func (c noteCandidate) empty() bool {
	return len(c.Interests) == 0 && len(c.Memories) == 0 && c.WhereMet == "" && c.MostImportantToKnow == ""
}

func cleanList(items []string, maxChars, minChars, maxItems int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		item = truncateClean(collapseSpace(item), maxChars)
		if len(item) < minChars {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

// collapseSpace trims and folds internal runs of whitespace to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateClean truncates a string to maxLen bytes, cutting at the last word
// boundary to avoid mid-word breaks.
func truncateClean(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	truncated := s[:maxLen]
	// Never split a multi-byte rune.
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	if idx := strings.LastIndexFunc(truncated, unicode.IsSpace); idx > maxLen/2 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}
