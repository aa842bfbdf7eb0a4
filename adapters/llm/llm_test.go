package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "metriscope/internal/errors"
	"metriscope/ports"
)

func TestHeuristicEnhancerPolishesText(t *testing.T) {
	resp, err := NewHeuristicEnhancer().Rewrite(context.Background(), ports.RewriteRequest{
		Hypotheses: []string{"revenue  rose 40.0%   around 2025-04-10"},
		Decisions:  []string{"ship variant \"treatment\"."},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue rose 40.0% around 2025-04-10."}, resp.Hypotheses)
	assert.Equal(t, []string{"Ship variant \"treatment\"."}, resp.Decisions)
}

func TestOpenAIEnhancerRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		content, _ := json.Marshal(ports.RewriteResponse{
			Hypotheses: []string{"Revenue rose sharply around April 10."},
			Decisions:  []string{"Ship the treatment variant."},
		})
		body := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": string(content)},
			}},
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	e := NewOpenAIEnhancer(Config{BaseURL: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"})
	resp, err := e.Rewrite(context.Background(), ports.RewriteRequest{
		Hypotheses: []string{"revenue rose 40.0% around 2025-04-10"},
		Decisions:  []string{"Ship variant \"treatment\""},
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose sharply around April 10.", resp.Hypotheses[0])
	assert.Equal(t, "Ship the treatment variant.", resp.Decisions[0])
}

func TestOpenAIEnhancerShapeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": `{"hypotheses": [], "decisions": []}`},
			}},
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	e := NewOpenAIEnhancer(Config{BaseURL: server.URL, APIKey: "test-key"})
	_, err := e.Rewrite(context.Background(), ports.RewriteRequest{Hypotheses: []string{"one"}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEnhancement))
}

func TestOpenAIEnhancerNoKey(t *testing.T) {
	e := NewOpenAIEnhancer(Config{})
	_, err := e.Rewrite(context.Background(), ports.RewriteRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEnhancement))
}
