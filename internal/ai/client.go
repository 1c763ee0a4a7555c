// Package ai wraps the Gemini API for the two analysis calls the pipeline
// makes per video: prediction extraction from a transcript and verification
// of each prediction against web search results.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ExtractedPrediction is one forecast pulled out of a transcript.
type ExtractedPrediction struct {
	Text             string `json:"text"`
	PredictedOutcome string `json:"predicted_outcome"`
	Timeframe        string `json:"timeframe"`
}

// Verification is the judged outcome of a single prediction.
type Verification struct {
	Score       float64 `json:"score"` // 0 (wrong) .. 1 (correct)
	Outcome     string  `json:"outcome"`
	Explanation string  `json:"explanation"`
}

// SearchResult is one web search hit fed into verification.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai: api key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// generateJSON runs one JSON-mode generation and returns the raw document.
func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return cleanJSONBlock(text), nil
}

// ExtractPredictions pulls the concrete, checkable forecasts out of one
// video transcript. An empty slice is a valid result: not every video makes
// predictions.
func (c *Client) ExtractPredictions(ctx context.Context, title, transcript string) ([]ExtractedPrediction, error) {
	raw, err := c.generateJSON(ctx, extractionPrompt(title, transcript))
	if err != nil {
		return nil, err
	}

	var preds []ExtractedPrediction
	if err := json.Unmarshal([]byte(raw), &preds); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	out := preds[:0]
	for _, p := range preds {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Verify judges one prediction against the supplied search results.
func (c *Client) Verify(ctx context.Context, pred ExtractedPrediction, results []SearchResult) (*Verification, error) {
	raw, err := c.generateJSON(ctx, verificationPrompt(pred, results))
	if err != nil {
		return nil, err
	}

	var v Verification
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parse verification response: %w", err)
	}
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 1 {
		v.Score = 1
	}
	return &v, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// cleanJSONBlock strips a markdown code fence if the model wrapped its JSON
// in one despite the response MIME type.
func cleanJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
