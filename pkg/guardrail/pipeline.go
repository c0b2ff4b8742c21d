package guardrail

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LanguageDetector identifies the language of a query.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (lang string, err error)
}

// SafetyAction is the configured response to a flagged query.
type SafetyAction string

const (
	ActionBlock       SafetyAction = "block"
	ActionRedact      SafetyAction = "redact"
	ActionPassThrough SafetyAction = "pass_through"
)

// SafetyVerdict is the result of the SAFE stage's classifier.
type SafetyVerdict struct {
	Flagged      bool
	Action       SafetyAction
	RedactedText string
}

// SafetyClassifier flags abuse, self-harm, or PII in a query.
type SafetyClassifier interface {
	Classify(ctx context.Context, text string) (SafetyVerdict, error)
}

// RelevanceClassifier scores how well the retrieved snippets answer the
// query; used by the ON_TOPIC stage.
type RelevanceClassifier interface {
	Score(ctx context.Context, query string, snippets []Snippet) (float64, error)
}

// Generator produces a grounded answer from the query and retrieved
// snippets. Implemented by pkg/answer; declared narrowly here to avoid a
// guardrail -> answer import cycle, since pkg/answer invokes the pipeline.
type Generator interface {
	Generate(ctx context.Context, query string, snippets []Snippet, history []string) (llmResponse string, citedIndices []int, err error)
}

// AlignmentChecker verifies a generated answer is grounded in the supplied
// snippets; used by the ALIGNED stage.
type AlignmentChecker interface {
	Verify(ctx context.Context, query, answer string, snippets []Snippet) (bool, error)
}

// Config holds the thresholds and timeout governing pipeline behaviour.
type Config struct {
	AllowedLanguages    []string
	AlignScoreThreshold float64
	ParaphraseThreshold float64
	StepTimeout         time.Duration
}

func (c Config) isAllowedLanguage(lang string) bool {
	for _, l := range c.AllowedLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// Pipeline runs the RECEIVED -> ... -> DELIVERED guardrail state machine.
type Pipeline struct {
	cfg       Config
	language  LanguageDetector
	safety    SafetyClassifier
	relevance RelevanceClassifier
	generator Generator
	alignment AlignmentChecker
}

// NewPipeline constructs a Pipeline from its stage collaborators.
func NewPipeline(cfg Config, language LanguageDetector, safety SafetyClassifier, relevance RelevanceClassifier, generator Generator, alignment AlignmentChecker) *Pipeline {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		language:  language,
		safety:    safety,
		relevance: relevance,
		generator: generator,
		alignment: alignment,
	}
}

// Run drives req through the pipeline. Snippets must already be populated
// (RETRIEVED precedes this call in the caller's search flow); Run covers
// LANG_OK, SAFE, ON_TOPIC, and, when requested, GENERATED and ALIGNED.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	var transitions []Transition
	record := func(stage Stage, ok bool, reason string) {
		transitions = append(transitions, Transition{Stage: stage, OK: ok, Reason: reason})
	}

	record(Received, true, "")

	lang, err := runStep(ctx, p.cfg.StepTimeout, func(ctx context.Context) (string, error) {
		return p.language.Detect(ctx, req.Query)
	})
	if err != nil || !p.cfg.isAllowedLanguage(lang) {
		record(LangOK, false, "unsupported_language")
		return Result{Outcome: OutcomeRejected, RejectReason: "unsupported_language", Transitions: transitions}
	}
	record(LangOK, true, "")

	query := req.Query
	verdict, err := runStep(ctx, p.cfg.StepTimeout, func(ctx context.Context) (SafetyVerdict, error) {
		return p.safety.Classify(ctx, req.Query)
	})
	if err != nil {
		// SAFE is non-critical; failure is conservative and blocks.
		record(Safe, false, "classifier_unavailable")
		return Result{Outcome: OutcomeRejected, RejectReason: "safety_check_failed", Transitions: transitions}
	}
	if verdict.Flagged {
		switch verdict.Action {
		case ActionBlock:
			record(Safe, false, "flagged")
			return Result{Outcome: OutcomeRejected, RejectReason: "unsafe_content", Transitions: transitions}
		case ActionRedact:
			query = verdict.RedactedText
			record(Safe, true, "redacted")
		default:
			record(Safe, true, "pass_through")
		}
	} else {
		record(Safe, true, "")
	}

	score, err := runStep(ctx, p.cfg.StepTimeout, func(ctx context.Context) (float64, error) {
		return p.relevance.Score(ctx, query, req.Snippets)
	})
	onTopic := err == nil && score >= p.cfg.ParaphraseThreshold
	record(OnTopic, onTopic, "")
	record(Retrieved, true, "")
	if !onTopic {
		return Result{Outcome: OutcomeUnableToAnswer, Transitions: transitions}
	}

	if !req.GenerateLLMResponse {
		return Result{Outcome: OutcomeDelivered, Transitions: transitions}
	}

	type genOut struct {
		text  string
		cited []int
	}
	gen, err := runStep(ctx, p.cfg.StepTimeout, func(ctx context.Context) (genOut, error) {
		text, cited, err := p.generator.Generate(ctx, query, req.Snippets, req.History)
		return genOut{text: text, cited: cited}, err
	})
	if err != nil {
		record(Generated, false, "generation_failed")
		return Result{Outcome: OutcomeRejected, RejectReason: "generation_failed", Transitions: transitions}
	}
	record(Generated, true, "")

	grounded, err := runStep(ctx, p.cfg.StepTimeout, func(ctx context.Context) (bool, error) {
		return p.alignment.Verify(ctx, query, gen.text, req.Snippets)
	})
	if err != nil || !grounded {
		// ALIGNED is non-critical; failure forces a templated fallback.
		record(Aligned, false, "ungrounded")
		return Result{
			Outcome:      OutcomeDelivered,
			Transitions:  append(transitions, Transition{Stage: Delivered, OK: true}),
			LLMResponse:  fallbackAnswer(req.Snippets),
			CitedIndices: nil,
		}
	}
	record(Aligned, true, "")
	record(Delivered, true, "")

	return Result{
		Outcome:      OutcomeDelivered,
		Transitions:  transitions,
		LLMResponse:  gen.text,
		CitedIndices: gen.cited,
	}
}

func fallbackAnswer(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "I could not find grounded information to answer this question."
	}
	titles := make([]string, len(snippets))
	for i, s := range snippets {
		titles[i] = s.Title
	}
	return fmt.Sprintf("I found related material but could not produce a fully grounded answer. See: %s.", strings.Join(titles, "; "))
}

// runStep runs fn with a per-step timeout, retrying once on failure per the
// "retried once on transport failure" contract.
func runStep[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := runOnce(ctx, timeout, fn)
	if err != nil {
		result, err = runOnce(ctx, timeout, fn)
	}
	return result, err
}

func runOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}
