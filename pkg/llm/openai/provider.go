// Package openai implements the llm provider interfaces against the OpenAI
// API (or any OpenAI-compatible endpoint).
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/studyforge/bookqa/pkg/llm"
	"github.com/studyforge/bookqa/pkg/utils/httpclient"
)

// ProviderName identifies this provider in the registry.
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config holds the OpenAI provider configuration.
type Config struct {
	// BaseURL is the API base address. Point it at a compatible service
	// (Azure OpenAI, LocalAI, ...) to reuse this provider.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey authenticates requests.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel is the embedding model id.
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel is the completion model id.
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry count for failed requests.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Organization is the optional OpenAI organization id.
	Organization string `json:"organization" mapstructure:"organization"`
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 1,
	}
}

// Provider is the OpenAI implementation of llm.Provider.
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider builds a provider from a config map (registry factory).
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
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

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates embeddings for texts, preserving input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/embeddings", p.headers(),
		embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &resp)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	// The API may return entries out of order; place them by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("openai embed: missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("openai embed: empty response")
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat runs one completion over the message history.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (string, error) {
	reqBody := chatRequest{
		Model:    p.config.ChatModel,
		Messages: make([]chatMessage, len(messages)),
	}
	for i, msg := range messages {
		reqBody.Messages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}
	if opts != nil {
		reqBody.Temperature = opts.Temperature
		reqBody.MaxTokens = opts.MaxTokens
	}

	var resp chatResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", p.headers(), reqBody, &resp)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	if p.config.Organization != "" {
		h["OpenAI-Organization"] = p.config.Organization
	}
	return h
}
