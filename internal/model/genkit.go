package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/david8712403/lec-dashboard-sub000/internal/config"
	"github.com/david8712403/lec-dashboard-sub000/internal/log"
)

// GenkitClient implements Client on top of a Genkit instance.
type GenkitClient struct {
	g      *genkit.Genkit
	model  string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	logger log.Logger
}

// NewGenkitClient initializes Genkit with the configured provider and
// returns a client bound to the configured model.
func NewGenkitClient(ctx context.Context, cfg *config.Config, logger log.Logger) (*GenkitClient, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized genkit", "provider", "ollama", "model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", "gemini", "model", cfg.ModelName)
	}

	return &GenkitClient{
		g:      g,
		model:  qualifiedModelName(cfg.Provider, cfg.ModelName),
		logger: logger,
	}, nil
}

// Complete sends the prompt and returns the raw response text.
func (c *GenkitClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return resp.Text(), nil
}

// qualifiedModelName prefixes the provider key unless the configured name
// already carries one.
func qualifiedModelName(provider, name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	switch provider {
	case config.ProviderOllama:
		return "ollama/" + name
	default:
		return "googleai/" + name
	}
}
