package answer

import (
	"reflect"
	"testing"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxIndex int
		want     []int
	}{
		{"single citation", "Drink water [1].", 2, []int{1}},
		{"multiple citations", "See [1] and [2].", 2, []int{1, 2}},
		{"duplicate citations dedup", "[1] again [1].", 2, []int{1}},
		{"out of range dropped", "See [3].", 2, nil},
		{"no citations", "no sources here", 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractCitations(tt.text, tt.maxIndex)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractCitations(%q, %d) = %v, want %v", tt.text, tt.maxIndex, got, tt.want)
			}
		})
	}
}

func TestBuildMessagesIncludesHistoryAndSources(t *testing.T) {
	snippets := []Snippet{{Index: 1, Title: "Headache", Text: "drink water"}}
	messages := buildMessages("what helps a headache", snippets, []string{"hi"})

	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}
	if messages[1].Content != "hi" {
		t.Errorf("messages[1].Content = %q, want history turn", messages[1].Content)
	}
	if messages[2].Content != "what helps a headache" {
		t.Errorf("messages[2].Content = %q, want query", messages[2].Content)
	}
}
