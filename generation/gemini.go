package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var (
	ErrBlocked       = errors.New("response blocked by safety filters")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Gemini generates with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, apiKey, model string, temperature float64) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(float32(temperature))
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	return &Gemini{client: client, model: m}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Generate(ctx context.Context, evidence, question string) (string, error) {
	prompt, err := Prompt(evidence, question)
	if err != nil {
		return "", err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, evidence, question string, fn StreamFunc) (string, error) {
	prompt, err := Prompt(evidence, question)
	if err != nil {
		return "", err
	}

	var answer strings.Builder

	iter := g.model.GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to stream answer: %w", err)
		}

		text, err := responseText(resp)
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}

		answer.WriteString(text)
		if err := fn(ctx, []byte(text)); err != nil {
			return "", err
		}
	}

	if answer.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return answer.String(), nil
}

// responseText joins the text parts of every candidate, reporting a prompt
// or candidate blocked for safety as ErrBlocked.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrBlocked, fb.BlockReason)
	}

	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			if c.FinishReason == genai.FinishReasonSafety {
				return "", fmt.Errorf("%w: %s", ErrBlocked, c.FinishReason)
			}
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	return b.String(), nil
}
