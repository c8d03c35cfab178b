package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseNoteResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    int // interests
	}{
		{"plain", `{"interests": ["chess"], "memories": []}`, false, 1},
		{"fenced", "```json\n{\"interests\": [\"chess\", \"jazz\"]}\n```", false, 2},
		{"chatter", `Sure! Here you go: {"interests": []} Hope that helps.`, false, 0},
		{"no object", `I could not find anything.`, true, 0},
		{"broken", `{"interests": [`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseNoteResponse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(c.Interests) != tt.want {
				t.Errorf("interests = %v, want %d", c.Interests, tt.want)
			}
		})
	}
}

func TestValidateCandidate(t *testing.T) {
	c := validateCandidate(noteCandidate{
		Interests: []string{"  Rock   climbing ", "rock climbing", "", "Jazz"},
		Memories:  []string{"short", "Went to her wedding in Lisbon", strings.Repeat("long ", 200)},
		WhereMet:  "  PyCon\n2019 ",
	})

	if got := strings.Join(c.Interests, "|"); got != "Rock climbing|Jazz" {
		t.Errorf("interests = %q", got)
	}
	if len(c.Memories) != 2 {
		t.Fatalf("memories = %v, want 2 (short one dropped)", c.Memories)
	}
	if len(c.Memories[1]) > maxMemoryChars {
		t.Errorf("memory not truncated: %d chars", len(c.Memories[1]))
	}
	if c.WhereMet != "PyCon 2019" {
		t.Errorf("where_met = %q", c.WhereMet)
	}
	if c.empty() {
		t.Error("candidate should not be empty")
	}
	if !validateCandidate(noteCandidate{Interests: []string{" "}}).empty() {
		t.Error("whitespace-only candidate should be empty")
	}
}

func TestValidateCandidateCapsCounts(t *testing.T) {
	var many []string
	for i := 0; i < 30; i++ {
		many = append(many, "interest "+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	c := validateCandidate(noteCandidate{Interests: many})
	if len(c.Interests) != maxInterests {
		t.Errorf("interests = %d, want %d", len(c.Interests), maxInterests)
	}
}

func TestTruncateClean(t *testing.T) {
	if got := truncateClean("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}

	s := "the quick brown fox jumps over the lazy dog"
	got := truncateClean(s, 20)
	if got != "the quick brown fox" {
		t.Errorf("got %q, want word boundary cut", got)
	}

	accented := strings.Repeat("é", 20)
	got = truncateClean(accented, 7)
	if !utf8.ValidString(got) {
		t.Errorf("split a rune: %q", got)
	}
	if len(got) > 7 {
		t.Errorf("len = %d, want <= 7", len(got))
	}
}
