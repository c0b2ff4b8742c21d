package guardrail

import (
	"context"
	"errors"
	"testing"
)

type fakeLanguage struct{ lang string }

func (f fakeLanguage) Detect(ctx context.Context, text string) (string, error) { return f.lang, nil }

type fakeSafety struct{ verdict SafetyVerdict }

func (f fakeSafety) Classify(ctx context.Context, text string) (SafetyVerdict, error) {
	return f.verdict, nil
}

type fakeRelevance struct{ score float64 }

func (f fakeRelevance) Score(ctx context.Context, query string, snippets []Snippet) (float64, error) {
	return f.score, nil
}

type fakeGenerator struct {
	text  string
	cited []int
	err   error
}

func (f fakeGenerator) Generate(ctx context.Context, query string, snippets []Snippet, history []string) (string, []int, error) {
	return f.text, f.cited, f.err
}

type fakeAlignment struct{ grounded bool }

func (f fakeAlignment) Verify(ctx context.Context, query, answer string, snippets []Snippet) (bool, error) {
	return f.grounded, nil
}

func testConfig() Config {
	return Config{AllowedLanguages: []string{"en"}, AlignScoreThreshold: 0.6, ParaphraseThreshold: 0.5}
}

func TestPipelineRejectsUnsupportedLanguage(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "fr"}, fakeSafety{}, fakeRelevance{}, fakeGenerator{}, fakeAlignment{})

	result := p.Run(context.Background(), Request{Query: "bonjour", GenerateLLMResponse: true})

	if result.Outcome != OutcomeRejected || result.RejectReason != "unsupported_language" {
		t.Fatalf("result = %+v, want rejected/unsupported_language", result)
	}
}

func TestPipelineBlocksFlaggedContent(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"},
		fakeSafety{verdict: SafetyVerdict{Flagged: true, Action: ActionBlock}},
		fakeRelevance{}, fakeGenerator{}, fakeAlignment{})

	result := p.Run(context.Background(), Request{Query: "hurt myself", GenerateLLMResponse: true})

	if result.Outcome != OutcomeRejected || result.RejectReason != "unsafe_content" {
		t.Fatalf("result = %+v, want rejected/unsafe_content", result)
	}
}

func TestPipelineUnableToAnswerBelowParaphraseThreshold(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"}, fakeSafety{},
		fakeRelevance{score: 0.1}, fakeGenerator{}, fakeAlignment{})

	result := p.Run(context.Background(), Request{
		Query:               "headache",
		Snippets:            []Snippet{{Index: 1, ID: 1, Title: "Nutrition"}},
		GenerateLLMResponse: true,
	})

	if result.Outcome != OutcomeUnableToAnswer {
		t.Fatalf("outcome = %v, want %v", result.Outcome, OutcomeUnableToAnswer)
	}
	if result.LLMResponse != "" {
		t.Errorf("LLMResponse = %q, want empty when unable to answer", result.LLMResponse)
	}
}

func TestPipelineRetrievalOnlyWhenGenerationNotRequested(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"}, fakeSafety{},
		fakeRelevance{score: 0.9}, fakeGenerator{}, fakeAlignment{})

	result := p.Run(context.Background(), Request{
		Query:               "headache",
		Snippets:            []Snippet{{Index: 1, ID: 1, Title: "Headache"}},
		GenerateLLMResponse: false,
	})

	if result.Outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want %v", result.Outcome, OutcomeDelivered)
	}
	if result.LLMResponse != "" {
		t.Errorf("LLMResponse = %q, want empty when generation not requested", result.LLMResponse)
	}
}

func TestPipelineDeliversGroundedAnswer(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"}, fakeSafety{},
		fakeRelevance{score: 0.9},
		fakeGenerator{text: "Drink water [1].", cited: []int{1}},
		fakeAlignment{grounded: true})

	result := p.Run(context.Background(), Request{
		Query:               "headache",
		Snippets:            []Snippet{{Index: 1, ID: 1, Title: "Headache"}},
		GenerateLLMResponse: true,
	})

	if result.Outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want %v", result.Outcome, OutcomeDelivered)
	}
	if result.LLMResponse != "Drink water [1]." {
		t.Errorf("LLMResponse = %q", result.LLMResponse)
	}
	if len(result.CitedIndices) != 1 || result.CitedIndices[0] != 1 {
		t.Errorf("CitedIndices = %v, want [1]", result.CitedIndices)
	}
}

func TestPipelineFallsBackWhenAnswerNotGrounded(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"}, fakeSafety{},
		fakeRelevance{score: 0.9},
		fakeGenerator{text: "unrelated claim"},
		fakeAlignment{grounded: false})

	result := p.Run(context.Background(), Request{
		Query:               "headache",
		Snippets:            []Snippet{{Index: 1, ID: 1, Title: "Headache basics"}},
		GenerateLLMResponse: true,
	})

	if result.Outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want %v", result.Outcome, OutcomeDelivered)
	}
	if result.LLMResponse == "unrelated claim" {
		t.Errorf("ungrounded answer was delivered verbatim, want templated fallback")
	}
	if result.CitedIndices != nil {
		t.Errorf("CitedIndices = %v, want nil on fallback", result.CitedIndices)
	}
}

func TestPipelineGenerationFailureRejects(t *testing.T) {
	p := NewPipeline(testConfig(), fakeLanguage{lang: "en"}, fakeSafety{},
		fakeRelevance{score: 0.9},
		fakeGenerator{err: errors.New("upstream down")},
		fakeAlignment{})

	result := p.Run(context.Background(), Request{
		Query:               "headache",
		Snippets:            []Snippet{{Index: 1, ID: 1, Title: "Headache"}},
		GenerateLLMResponse: true,
	})

	if result.Outcome != OutcomeRejected || result.RejectReason != "generation_failed" {
		t.Fatalf("result = %+v, want rejected/generation_failed", result)
	}
}
