package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder maps a text to a fixed-length vector. Model identifies the
// function so persisted vectors can be checked against it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type client interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Ollama embeds through an Ollama server.
type Ollama struct {
	llm   client
	model string
}

func NewOllama(serverURL, model string) (*Ollama, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &Ollama{llm: llm, model: model}, nil
}

func (o *Ollama) Model() string {
	return o.model
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	embeds, err := o.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeds) == 0 || len(embeds[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return embeds[0], nil
}
