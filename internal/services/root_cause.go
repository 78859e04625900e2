package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/utils"
)

const (
	maxRootCauseLength   = 4000
	maxPromptDescription = 2000
)

// RootCauseGenerator produces a free-text root-cause narrative for an anomaly
type RootCauseGenerator interface {
	GenerateRootCause(ctx context.Context, a *database.Anomaly) (string, error)
}

// ErrGeneratorDisabled is returned when no API key is configured
var ErrGeneratorDisabled = errors.New("root cause generation is not configured")

// LLMRootCauseGenerator calls an OpenAI-compatible chat completions endpoint
type LLMRootCauseGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLLMRootCauseGenerator creates a generator. baseURL is the API root,
// e.g. https://api.openai.com/v1.
func NewLLMRootCauseGenerator(apiKey, baseURL, model string, timeout time.Duration) *LLMRootCauseGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMRootCauseGenerator{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// OpenAI API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const rootCauseSystemPrompt = `You are a supply chain operations analyst for a tobacco and agriculture logistics platform.
Given a detected anomaly, explain its most likely root cause in 2-3 sentences.

RULES:
- Base the explanation only on the data provided
- Name the most likely operational cause first, then one contributing factor
- Do not repeat the suggested resolution
- Plain text only, no markdown

Respond with ONLY the explanation.`

// GenerateRootCause sends a structured anomaly summary and returns the model's text
func (g *LLMRootCauseGenerator) GenerateRootCause(ctx context.Context, a *database.Anomaly) (string, error) {
	if g.apiKey == "" {
		return "", ErrGeneratorDisabled
	}

	summary, err := anomalySummary(a)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: rootCauseSystemPrompt},
			{Role: "user", Content: summary},
		},
		MaxTokens:   300,
		Temperature: 0.2,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("root cause request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty root cause")
	}
	return utils.TruncateRunes(text, maxRootCauseLength), nil
}

// anomalySummary renders the anomaly as the user prompt
func anomalySummary(a *database.Anomaly) (string, error) {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Anomaly type: %s\n", a.AnomalyType)
	fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Description: %s\n", utils.TruncateRunes(a.Description, maxPromptDescription))
	fmt.Fprintf(&b, "Affected resource: %s %s\n", a.AffectedResourceType, a.AffectedResourceID)
	fmt.Fprintf(&b, "Suggested resolution: %s\n", a.SuggestedResolution)
	fmt.Fprintf(&b, "Measurements: %s\n", meta)
	return b.String(), nil
}
