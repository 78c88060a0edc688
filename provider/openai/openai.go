package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/helpers"
	"github.com/ronguha/hedge-fund-agent/models"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// Client implements the oracle interface using OpenAI's chat completions API.
type Client struct {
	apiKey          string
	apiURL          string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI-backed oracle client.
func NewClient(cfg config.OpenAIConfig) *Client {
	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	model := cfg.CompletionModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:          cfg.APIKey,
		apiURL:          apiURL,
		completionModel: model,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// AnalyzeScenario interprets a market scenario and drafts one play per asset class.
func (c *Client) AnalyzeScenario(ctx context.Context, description string) (models.ScenarioAnalysis, error) {
	prompt := fmt.Sprintf(`You are a hedge fund analyst. Analyze the following market scenario and provide detailed investment recommendations.

Scenario: %s

Please provide:
1. A clear interpretation of what this scenario means for the markets
2. THREE specific investment plays - one each for equities, commodities and fixed income

For each play, provide a clear title, detailed description, specific action (Buy/Sell/Short/Long), specific instruments (ticker symbols, ETFs, or asset names), a detailed rationale, risk level (Low/Medium/High), time horizon (Short-term/Medium-term/Long-term) and a confidence score (0.0 to 1.0).

Return your response as a JSON object with this exact structure:
{
  "interpreted_scenario": "clear interpretation of the scenario",
  "plays": [
    {
      "asset_class": "equity",
      "title": "play title",
      "description": "detailed description",
      "action": "Buy/Sell/Short/Long",
      "instruments": ["TICKER1", "TICKER2"],
      "rationale": "why this play makes sense",
      "risk_level": "Low/Medium/High",
      "time_horizon": "Short-term/Medium-term/Long-term",
      "confidence_score": 0.75
    },
    {"asset_class": "commodity", ...},
    {"asset_class": "fixed_income", ...}
  ]
}
Do not include any other text or explanation.`, description)

	responseStr, err := c.sendRequest(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return models.ScenarioAnalysis{}, err
	}

	var analysis models.ScenarioAnalysis
	if err := decodeStrict(responseStr, &analysis); err != nil {
		return models.ScenarioAnalysis{}, err
	}
	return analysis, nil
}

// EvaluatePlay asks for a modification verdict against the news snapshot.
func (c *Client) EvaluatePlay(ctx context.Context, play models.Play, articles []models.NewsArticle) (models.PlayVerdict, error) {
	var newsSummary []string
	for i, a := range articles {
		if i == 5 {
			break
		}
		newsSummary = append(newsSummary, fmt.Sprintf("- %s: %s", a.Title, a.Summary))
	}

	prompt := fmt.Sprintf(`You are a hedge fund analyst monitoring an active investment play. Based on recent news, provide updates or modifications to the play if needed.

Current Play:
- Asset Class: %s
- Title: %s
- Action: %s
- Instruments: %s
- Rationale: %s
- Risk Level: %s

Recent News:
%s

Return your response as JSON:
{
  "should_modify": true/false,
  "modifications": "description of changes, or empty string if no changes",
  "updated_confidence_score": 0.75
}
Do not include any other text or explanation.`,
		play.AssetClass, play.Title, play.Action, strings.Join(play.Instruments, ", "),
		play.Rationale, play.RiskLevel, strings.Join(newsSummary, "\n"))

	responseStr, err := c.sendRequest(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return models.PlayVerdict{}, err
	}

	var verdict models.PlayVerdict
	if err := decodeStrict(responseStr, &verdict); err != nil {
		return models.PlayVerdict{}, err
	}
	return verdict, nil
}

// GenerateAlerts proposes alerts for the play given the news snapshot.
func (c *Client) GenerateAlerts(ctx context.Context, interpretedScenario string, play models.Play, articles []models.NewsArticle) ([]models.AlertDraft, error) {
	var headlines []string
	for i, a := range articles {
		if i == 3 {
			break
		}
		headlines = append(headlines, "- "+a.Title)
	}

	prompt := fmt.Sprintf(`You are monitoring an investment scenario. Analyze if any alerts should be triggered.

Scenario: %s
Play: %s - %s %s

Recent News:
%s

Generate alerts if there are significant market movements affecting the play, news that contradicts the play thesis, or risk level changes.

Return as JSON array:
[
  {"message": "alert message", "severity": "info/warning/critical"}
]

If no alerts needed, return empty array: []`,
		interpretedScenario, play.Title, play.Action, strings.Join(play.Instruments, ", "),
		strings.Join(headlines, "\n"))

	responseStr, err := c.sendRequest(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	var alerts []models.AlertDraft
	if err := decodeStrict(responseStr, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// decodeStrict is the decoding boundary for model output: strip code fences,
// extract the first balanced JSON value, then a strict unmarshal. Any failure
// is reported as models.ErrMalformedResponse, never as a raw parse error.
func decodeStrict(raw string, out any) error {
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	return nil
}

// sendRequest sends a request to the OpenAI API
func (c *Client) sendRequest(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp response
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}
