package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "metriscope/internal/errors"
	"metriscope/ports"
)

const systemPrompt = `You polish the wording of product-analytics findings. You receive JSON with "hypotheses" and "decisions" arrays of plain sentences. Rewrite each one to be clearer and more readable for a product manager. Never change numbers, dates, column names, variant names, or the order of items. Respond with valid JSON of the same shape: {"hypotheses": [...], "decisions": [...]} with exactly the same array lengths.`

// Config holds the OpenAI-compatible endpoint settings
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIEnhancer rewrites report text through an OpenAI-compatible chat
// completions endpoint
type OpenAIEnhancer struct {
	config Config
	client *http.Client
}

// NewOpenAIEnhancer creates an enhancer against the configured endpoint
func NewOpenAIEnhancer(config Config) *OpenAIEnhancer {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &OpenAIEnhancer{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Rewrite sends the deterministic texts for polishing and validates the
// response shape before returning it
func (e *OpenAIEnhancer) Rewrite(ctx context.Context, req ports.RewriteRequest) (*ports.RewriteResponse, error) {
	if e.config.APIKey == "" {
		return nil, apperrors.Enhancement("no API key configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Enhancementf("marshal rewrite request: %v", err)
	}

	body := chatRequest{
		Model: e.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature: 0.3,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Enhancementf("marshal chat request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperrors.Enhancementf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	log.Printf("[Enhancer] Rewriting %d hypotheses and %d decisions via %s", len(req.Hypotheses), len(req.Decisions), e.config.Model)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Enhancementf("chat completion call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, apperrors.Enhancementf("chat completion status %d: %s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Enhancementf("read response: %v", err)
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.Enhancementf("parse response envelope: %v", err)
	}
	if len(envelope.Choices) == 0 {
		return nil, apperrors.Enhancement("empty choices in response")
	}

	content := strings.TrimSpace(envelope.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result ports.RewriteResponse
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, apperrors.Enhancementf("parse rewritten texts: %v", err)
	}
	if len(result.Hypotheses) != len(req.Hypotheses) || len(result.Decisions) != len(req.Decisions) {
		return nil, apperrors.Enhancementf("shape mismatch: got %d/%d texts, want %d/%d",
			len(result.Hypotheses), len(result.Decisions), len(req.Hypotheses), len(req.Decisions))
	}
	return &result, nil
}

var _ ports.Enhancer = (*OpenAIEnhancer)(nil)
