package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LLM generates with any langchaingo model; in practice an Ollama server.
type LLM struct {
	model       llms.Model
	temperature float64
}

func NewOllama(serverURL, model string, temperature float64) (*LLM, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return NewLLM(llm, temperature), nil
}

func NewLLM(model llms.Model, temperature float64) *LLM {
	return &LLM{model: model, temperature: temperature}
}

func (l *LLM) Generate(ctx context.Context, evidence, question string) (string, error) {
	return l.call(ctx, evidence, question)
}

func (l *LLM) Stream(ctx context.Context, evidence, question string, fn StreamFunc) (string, error) {
	return l.call(ctx, evidence, question, llms.WithStreamingFunc(fn))
}

func (l *LLM) call(ctx context.Context, evidence, question string, opts ...llms.CallOption) (string, error) {
	prompt, err := Prompt(evidence, question)
	if err != nil {
		return "", err
	}

	opts = append(opts, llms.WithTemperature(l.temperature))

	answer, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	return answer, nil
}
