// Package answer implements the grounded LLM completion stage: it prompts
// an OpenAI-compatible chat model with the retrieved snippets at stable
// indices, forbids information beyond them, and extracts the citation
// markers the model is instructed to emit.
package answer

import "github.com/askaq/aaq/pkg/guardrail"

// Snippet is a retrieved content item presented to the model at a stable,
// 1-based index.
type Snippet = guardrail.Snippet
