// Package oracle holds the concrete reasoning-oracle backends.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/okian/botscope/internal/domain/model"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultEmbedModel  = "gemini-embedding-001"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOption configures a Gemini oracle.
type GeminiOption func(*Gemini)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(g *Gemini) {
		if t >= 0 {
			g.temperature = genai.Ptr(t)
		}
	}
}

// WithModel sets the generation model.
func WithModel(name string) GeminiOption {
	return func(g *Gemini) {
		if name != "" {
			g.model = name
		}
	}
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature *float32
}

// NewGemini creates a Gemini API client. A missing key is a configuration failure.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w: api key is required", model.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w: %w", model.ErrConfiguration, err)
	}
	return newGemini(client.Models, opts...), nil
}

func newGemini(models contentGenerator, opts ...GeminiOption) *Gemini {
	g := &Gemini{models: models, model: defaultGeminiModel}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends prompt as a single user turn and returns the text of the first candidate.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: g.temperature}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini generate: %w: empty response", model.ErrUpstreamUnavailable)
	}
	return text, nil
}

// GeminiEmbedder embeds texts with a Gemini embedding model.
type GeminiEmbedder struct {
	embed func(ctx context.Context, texts []string) ([][]float32, error)
	model string
}

// NewGeminiEmbedder creates an embedder. A missing key is a configuration failure.
func NewGeminiEmbedder(ctx context.Context, apiKey, embedModel string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: %w: api key is required", model.ErrConfiguration)
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w: %w", model.ErrConfiguration, err)
	}
	e := &GeminiEmbedder{model: embedModel}
	e.embed = func(ctx context.Context, texts []string) ([][]float32, error) {
		contents := make([]*genai.Content, len(texts))
		for i, t := range texts {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}
		res, err := client.Models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(res.Embeddings))
		for i, emb := range res.Embeddings {
			out[i] = emb.Values
		}
		return out, nil
	}
	return e, nil
}

// Embed returns one vector per text.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := e.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("gemini embed: %w: %d embeddings for %d texts", model.ErrUpstreamUnavailable, len(out), len(texts))
	}
	return out, nil
}
