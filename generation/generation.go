package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// EmptyContext stands in for the context when retrieval found nothing.
const EmptyContext = "No specific information found in the knowledge base for this question."

const instructions = `Use ONLY the following context chunks to answer the user's question accurately.
Do not add information not present in the context.
If the context doesn't contain the answer, state that the information is not available in the provided data.
If the question is subjective (e.g., "best dish"), list relevant options from the context instead of making a judgment.

Context Chunks:
---
{{.context}}
---

User Question: {{.question}}

Answer:`

var promptTemplate = prompts.NewPromptTemplate(instructions, []string{"context", "question"})

// Generator turns evidence context and a question into an answer. The
// answer is returned verbatim.
type Generator interface {
	Generate(ctx context.Context, evidence, question string) (string, error)
}

// StreamFunc receives answer fragments as they are produced.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Streamer is implemented by generators that can stream their answer.
// The full answer is still returned at the end.
type Streamer interface {
	Stream(ctx context.Context, evidence, question string, fn StreamFunc) (string, error)
}

// Prompt renders the fixed instruction template.
func Prompt(evidence, question string) (string, error) {
	if strings.TrimSpace(evidence) == "" {
		evidence = EmptyContext
	}

	prompt, err := promptTemplate.Format(map[string]any{
		"context":  evidence,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	return prompt, nil
}
