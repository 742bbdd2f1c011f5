// Package bookqa wires the grounded book question-answering service.
package bookqa

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	milvusopts "github.com/studyforge/bookqa/pkg/component/milvus"
	pgopts "github.com/studyforge/bookqa/pkg/component/postgres"
	redisopts "github.com/studyforge/bookqa/pkg/component/redis"
)

// Options contains all service options.
type Options struct {
	Server    *ServerOptions      `json:"server" mapstructure:"server"`
	Log       *LogOptions         `json:"log" mapstructure:"log"`
	Milvus    *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
	Postgres  *pgopts.Options     `json:"postgres" mapstructure:"postgres"`
	Redis     *redisopts.Options  `json:"redis" mapstructure:"redis"`
	Embedding *ProviderOptions    `json:"embedding" mapstructure:"embedding"`
	Fallback  *ProviderOptions    `json:"fallback-embedding" mapstructure:"fallback-embedding"`
	Chat      *ProviderOptions    `json:"chat" mapstructure:"chat"`
	Rerank    *ProviderOptions    `json:"rerank" mapstructure:"rerank"`
	RAG       *RAGOptions         `json:"rag" mapstructure:"rag"`
	RateLimit *RateLimitOptions   `json:"ratelimit" mapstructure:"ratelimit"`
}

// ServerOptions configures the HTTP listener.
type ServerOptions struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	Mode            string        `json:"mode" mapstructure:"mode"`
	ReadTimeout     time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// LogOptions configures the global logger.
type LogOptions struct {
	Level       string   `json:"level" mapstructure:"level"`
	Format      string   `json:"format" mapstructure:"format"`
	OutputPaths []string `json:"output-paths" mapstructure:"output-paths"`
	Development bool     `json:"development" mapstructure:"development"`
}

// ProviderOptions configures one LLM provider binding.
type ProviderOptions struct {
	Provider string `json:"provider" mapstructure:"provider"`
	BaseURL  string `json:"base-url" mapstructure:"base-url"`
	// APIKey is excluded from JSON so it never lands in logs.
	APIKey       string        `json:"-" mapstructure:"api-key"`
	Model        string        `json:"model" mapstructure:"model"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	Organization string        `json:"organization" mapstructure:"organization"`
}

// ToConfigMap converts the options into the map shape the provider
// factories consume.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"rerank_model": o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// RAGOptions configures the retrieval and generation pipeline.
type RAGOptions struct {
	// Strategy selects the embedding strategy used at query time.
	Strategy string `json:"strategy" mapstructure:"strategy"`

	PrimaryCollection  string `json:"primary-collection" mapstructure:"primary-collection"`
	PrimaryDim         int    `json:"primary-dim" mapstructure:"primary-dim"`
	FallbackCollection string `json:"fallback-collection" mapstructure:"fallback-collection"`
	FallbackDim        int    `json:"fallback-dim" mapstructure:"fallback-dim"`

	TopK                int     `json:"top-k" mapstructure:"top-k"`
	RerankKeep          int     `json:"rerank-keep" mapstructure:"rerank-keep"`
	ConfidenceThreshold float64 `json:"confidence-threshold" mapstructure:"confidence-threshold"`

	ChunkTarget  int `json:"chunk-target" mapstructure:"chunk-target"`
	ChunkMax     int `json:"chunk-max" mapstructure:"chunk-max"`
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	HNSWM              int `json:"hnsw-m" mapstructure:"hnsw-m"`
	HNSWEfConstruction int `json:"hnsw-ef-construction" mapstructure:"hnsw-ef-construction"`

	IngestBatchSize   int `json:"ingest-batch-size" mapstructure:"ingest-batch-size"`
	IngestMaxAttempts int `json:"ingest-max-attempts" mapstructure:"ingest-max-attempts"`
	IngestWorkers     int `json:"ingest-workers" mapstructure:"ingest-workers"`

	RecentTurns   int           `json:"recent-turns" mapstructure:"recent-turns"`
	SessionTTL    time.Duration `json:"session-ttl" mapstructure:"session-ttl"`
	SweepInterval time.Duration `json:"sweep-interval" mapstructure:"sweep-interval"`
	SessionRetain time.Duration `json:"session-retain" mapstructure:"session-retain"`

	TranslateLanguage string `json:"translate-language" mapstructure:"translate-language"`
}

// RateLimitOptions configures per-caller request limits.
type RateLimitOptions struct {
	Enabled            bool `json:"enabled" mapstructure:"enabled"`
	ChatPerMinute      int  `json:"chat-per-minute" mapstructure:"chat-per-minute"`
	TransformPerMinute int  `json:"transform-per-minute" mapstructure:"transform-per-minute"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Server: &ServerOptions{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: &LogOptions{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Milvus:   milvusopts.NewOptions(),
		Postgres: pgopts.NewOptions(),
		Redis:    redisopts.NewOptions(),
		Embedding: &ProviderOptions{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Fallback: &ProviderOptions{
			Provider:   "ollama",
			BaseURL:    "http://localhost:11434",
			Model:      "all-minilm",
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Chat: &ProviderOptions{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Rerank: &ProviderOptions{
			Provider:   "huggingface",
			BaseURL:    "https://api-inference.huggingface.co",
			Model:      "cross-encoder/ms-marco-MiniLM-L-6-v2",
			Timeout:    60 * time.Second,
			MaxRetries: 1,
		},
		RAG: &RAGOptions{
			Strategy:            biz.StrategyPrimary,
			PrimaryCollection:   "physical_ai_robotics_book",
			PrimaryDim:          1536,
			FallbackCollection:  "physical_ai_robotics_book_local",
			FallbackDim:         384,
			TopK:                10,
			RerankKeep:          5,
			ConfidenceThreshold: 0.7,
			ChunkTarget:         512,
			ChunkMax:            600,
			ChunkOverlap:        50,
			HNSWM:               16,
			HNSWEfConstruction:  100,
			IngestBatchSize:     100,
			IngestMaxAttempts:   3,
			IngestWorkers:       4,
			RecentTurns:         5,
			SessionTTL:          24 * time.Hour,
			SweepInterval:       time.Hour,
			SessionRetain:       7 * 24 * time.Hour,
			TranslateLanguage:   "ur",
		},
		RateLimit: &RateLimitOptions{
			Enabled:            true,
			ChatPerMinute:      20,
			TransformPerMinute: 10,
		},
	}
}

// AddFlags adds all service flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP listen address")
	fs.StringVar(&o.Server.Mode, "server.mode", o.Server.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.Server.ReadTimeout, "server.read-timeout", o.Server.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&o.Server.WriteTimeout, "server.write-timeout", o.Server.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&o.Log.Format, "log.format", o.Log.Format, "Log format (json, console)")
	fs.StringSliceVar(&o.Log.OutputPaths, "log.output-paths", o.Log.OutputPaths, "Log output paths")
	fs.BoolVar(&o.Log.Development, "log.development", o.Log.Development, "Enable development logging")

	o.Milvus.AddFlags(fs)
	o.Postgres.AddFlags(fs)
	o.Redis.AddFlags(fs)

	o.addProviderFlags(fs, "embedding", o.Embedding)
	o.addProviderFlags(fs, "fallback-embedding", o.Fallback)
	o.addProviderFlags(fs, "chat", o.Chat)
	o.addProviderFlags(fs, "rerank", o.Rerank)

	fs.StringVar(&o.RAG.Strategy, "rag.strategy", o.RAG.Strategy, "Query embedding strategy (primary, fallback)")
	fs.IntVar(&o.RAG.TopK, "rag.top-k", o.RAG.TopK, "Vector search candidate count")
	fs.IntVar(&o.RAG.RerankKeep, "rag.rerank-keep", o.RAG.RerankKeep, "Chunks kept after reranking")
	fs.Float64Var(&o.RAG.ConfidenceThreshold, "rag.confidence-threshold", o.RAG.ConfidenceThreshold, "Minimum top score for grounded generation")
	fs.IntVar(&o.RAG.ChunkTarget, "rag.chunk-target", o.RAG.ChunkTarget, "Chunk packing target in tokens")
	fs.IntVar(&o.RAG.ChunkMax, "rag.chunk-max", o.RAG.ChunkMax, "Hard chunk token ceiling")
	fs.IntVar(&o.RAG.ChunkOverlap, "rag.chunk-overlap", o.RAG.ChunkOverlap, "Chunk overlap budget in tokens")
	fs.IntVar(&o.RAG.RecentTurns, "rag.recent-turns", o.RAG.RecentTurns, "History turns fed to generation")
	fs.DurationVar(&o.RAG.SessionTTL, "rag.session-ttl", o.RAG.SessionTTL, "Session idle TTL")
	fs.DurationVar(&o.RAG.SweepInterval, "rag.sweep-interval", o.RAG.SweepInterval, "Expired-session sweep interval")
	fs.DurationVar(&o.RAG.SessionRetain, "rag.session-retain", o.RAG.SessionRetain, "How long expired sessions are kept before deletion")
	fs.StringVar(&o.RAG.TranslateLanguage, "rag.translate-language", o.RAG.TranslateLanguage, "Default translation target language")

	fs.BoolVar(&o.RateLimit.Enabled, "ratelimit.enabled", o.RateLimit.Enabled, "Enable per-caller rate limiting")
	fs.IntVar(&o.RateLimit.ChatPerMinute, "ratelimit.chat-per-minute", o.RateLimit.ChatPerMinute, "Chat requests per caller per minute")
	fs.IntVar(&o.RateLimit.TransformPerMinute, "ratelimit.transform-per-minute", o.RateLimit.TransformPerMinute, "Transform requests per caller per minute")
}

func (o *Options) addProviderFlags(fs *pflag.FlagSet, prefix string, p *ProviderOptions) {
	fs.StringVar(&p.Provider, prefix+".provider", p.Provider, "Provider name")
	fs.StringVar(&p.BaseURL, prefix+".base-url", p.BaseURL, "Provider API base URL")
	fs.StringVar(&p.APIKey, prefix+".api-key", p.APIKey, "Provider API key")
	fs.StringVar(&p.Model, prefix+".model", p.Model, "Model name")
	fs.DurationVar(&p.Timeout, prefix+".timeout", p.Timeout, "Request timeout")
	fs.IntVar(&p.MaxRetries, prefix+".max-retries", p.MaxRetries, "Max request retries")
}

// Validate checks all options.
func (o *Options) Validate() error {
	if o.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := o.Milvus.Validate(); err != nil {
		return err
	}
	if err := o.Postgres.Validate(); err != nil {
		return err
	}
	if err := o.Redis.Validate(); err != nil {
		return err
	}
	for prefix, p := range map[string]*ProviderOptions{
		"embedding":          o.Embedding,
		"fallback-embedding": o.Fallback,
		"chat":               o.Chat,
		"rerank":             o.Rerank,
	} {
		if err := validateProvider(prefix, p); err != nil {
			return err
		}
	}
	if o.RAG.Strategy != biz.StrategyPrimary && o.RAG.Strategy != biz.StrategyFallback {
		return fmt.Errorf("rag.strategy must be %q or %q", biz.StrategyPrimary, biz.StrategyFallback)
	}
	if o.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top-k must be positive")
	}
	if o.RAG.RerankKeep <= 0 {
		return fmt.Errorf("rag.rerank-keep must be positive")
	}
	if o.RAG.ConfidenceThreshold < 0 || o.RAG.ConfidenceThreshold > 1 {
		return fmt.Errorf("rag.confidence-threshold must be in [0, 1]")
	}
	if o.RAG.ChunkTarget <= 0 || o.RAG.ChunkMax < o.RAG.ChunkTarget {
		return fmt.Errorf("rag.chunk-max must be >= rag.chunk-target > 0")
	}
	if o.RAG.ChunkOverlap < 0 || o.RAG.ChunkOverlap >= o.RAG.ChunkTarget {
		return fmt.Errorf("rag.chunk-overlap must be in [0, chunk-target)")
	}
	if o.RateLimit.Enabled && (o.RateLimit.ChatPerMinute <= 0 || o.RateLimit.TransformPerMinute <= 0) {
		return fmt.Errorf("ratelimit rates must be positive when enabled")
	}
	return nil
}

func validateProvider(prefix string, p *ProviderOptions) error {
	if p.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if p.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// Complete fills derived defaults after flag and config parsing. Provider
// API keys fall back to BOOKQA_<PREFIX>_API_KEY environment variables so
// they never need to appear in config files.
func (o *Options) Complete() error {
	for prefix, p := range map[string]*ProviderOptions{
		"embedding":          o.Embedding,
		"fallback-embedding": o.Fallback,
		"chat":               o.Chat,
		"rerank":             o.Rerank,
	} {
		if p.APIKey == "" {
			env := "BOOKQA_" + strings.ReplaceAll(strings.ToUpper(prefix), "-", "_") + "_API_KEY"
			p.APIKey = os.Getenv(env)
		}
	}
	if o.RAG.SweepInterval <= 0 {
		o.RAG.SweepInterval = time.Hour
	}
	if o.RAG.SessionRetain <= 0 {
		o.RAG.SessionRetain = 7 * 24 * time.Hour
	}
	if o.RAG.IngestWorkers <= 0 {
		o.RAG.IngestWorkers = 4
	}
	return nil
}

// Config builds the server configuration from the validated options.
func (o *Options) Config() (*Config, error) {
	return &Config{Options: o}, nil
}
