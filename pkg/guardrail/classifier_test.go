package guardrail

import "testing"

func TestExtractJSONStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"language\": \"en\"}\n```"
	got := extractJSON(raw)
	if got != `{"language": "en"}` {
		t.Errorf("extractJSON() = %q", got)
	}
}

func TestExtractJSONPassesThroughBareObject(t *testing.T) {
	raw := `{"score": 0.9}`
	if got := extractJSON(raw); got != raw {
		t.Errorf("extractJSON() = %q, want unchanged", got)
	}
}

func TestNewLLMClassifierDefaultsSafetyActionToBlock(t *testing.T) {
	c := NewLLMClassifier(ClassifierConfig{BaseURL: "http://example.invalid", Model: "m"})
	if c.cfg.DefaultSafetyAction != ActionBlock {
		t.Errorf("DefaultSafetyAction = %q, want block", c.cfg.DefaultSafetyAction)
	}
}
