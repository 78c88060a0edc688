package provider

import (
	"context"
	"errors"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/models"
	openai_provider "github.com/ronguha/hedge-fund-agent/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the analysis oracle consumed by the tracking engine. It is
// best-effort: callers must treat models.ErrMalformedResponse as a soft
// failure and degrade rather than abort.
type Provider interface {
	// AnalyzeScenario interprets a market scenario and drafts one play per
	// asset class. Used once, at scenario creation.
	AnalyzeScenario(ctx context.Context, description string) (models.ScenarioAnalysis, error)
	// EvaluatePlay returns a modification verdict for an active play against
	// a fresh news snapshot.
	EvaluatePlay(ctx context.Context, play models.Play, articles []models.NewsArticle) (models.PlayVerdict, error)
	// GenerateAlerts proposes alerts for a play given the same snapshot. An
	// empty list is a valid answer.
	GenerateAlerts(ctx context.Context, interpretedScenario string, play models.Play, articles []models.NewsArticle) ([]models.AlertDraft, error)
}

// NewProvider creates a new oracle client based on the provided configuration
func NewProvider(client Client, cfg config.ProvidersConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if err := cfg.OpenAI.Validate(); err != nil {
			return nil, err
		}
		return openai_provider.NewClient(cfg.OpenAI), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
