// Package huggingface implements cross-encoder reranking through the
// HuggingFace Inference API. The default model scores (query, passage)
// pairs for relevance.
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studyforge/bookqa/pkg/llm"
	"github.com/studyforge/bookqa/pkg/utils/httpclient"
	"github.com/studyforge/bookqa/pkg/utils/json"
)

// ProviderName identifies this provider in the registry.
const ProviderName = "huggingface"

func init() {
	llm.RegisterRerankProvider(ProviderName, NewProvider)
}

// Config holds the HuggingFace provider configuration.
type Config struct {
	// BaseURL is the Inference API base address.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey is the HuggingFace API token.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// RerankModel is the cross-encoder model id.
	RerankModel string `json:"rerank_model" mapstructure:"rerank_model"`

	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry count for failed requests.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// WaitForModel asks the API to block while the model loads instead of
	// returning 503.
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		RerankModel:  "cross-encoder/ms-marco-MiniLM-L-6-v2",
		Timeout:      60 * time.Second,
		MaxRetries:   1,
		WaitForModel: true,
	}
}

// Provider is the HuggingFace implementation of llm.RerankProvider.
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider builds a provider from a config map (registry factory).
func NewProvider(configMap map[string]any) (llm.RerankProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["rerank_model"].(string); ok && v != "" {
		cfg.RerankModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key is required")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig builds a provider from structured configuration.
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.New(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

type rerankRequest struct {
	Inputs  []rerankPair   `json:"inputs"`
	Options *rerankOptions `json:"options,omitempty"`
}

type rerankPair struct {
	Text     string `json:"text"`
	TextPair string `json:"text_pair"`
}

type rerankOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Rerank scores each document against the query, preserving input order.
func (p *Provider) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := rerankRequest{Inputs: make([]rerankPair, len(documents))}
	for i, doc := range documents {
		reqBody.Inputs[i] = rerankPair{Text: query, TextPair: doc}
	}
	if p.config.WaitForModel {
		reqBody.Options = &rerankOptions{WaitForModel: true}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("huggingface rerank: marshal request: %w", err)
	}

	url := p.config.BaseURL + "/models/" + p.config.RerankModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("huggingface rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface rerank: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface rerank: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("huggingface rerank: status %d: %s", resp.StatusCode, string(body))
	}
	return parseScores(body, len(documents))
}

// parseScores accepts both response shapes of the classification pipeline:
// nested per-input label lists, or a flat score list for rank models.
func parseScores(body []byte, n int) ([]float64, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) == n {
		scores := make([]float64, n)
		for i, labels := range nested {
			if len(labels) == 0 {
				return nil, fmt.Errorf("huggingface rerank: empty scores for input %d", i)
			}
			scores[i] = labels[0].Score
		}
		return scores, nil
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) == n {
		scores := make([]float64, n)
		for i, s := range flat {
			scores[i] = s.Score
		}
		return scores, nil
	}

	return nil, fmt.Errorf("huggingface rerank: unexpected response shape: %s", string(body))
}
