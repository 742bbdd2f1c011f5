package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/studyforge/bookqa/internal/bookqa/metrics"
	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/model"
	"github.com/studyforge/bookqa/pkg/llm"
)

// TransformConfig tunes chapter transforms.
type TransformConfig struct {
	// DefaultLanguage is the translation target when none is requested.
	DefaultLanguage string
	// Temperature and MaxTokens apply to transform completions.
	Temperature float64
	MaxTokens   int
}

// DefaultTransformConfig returns the standard transform parameters.
func DefaultTransformConfig() *TransformConfig {
	return &TransformConfig{
		DefaultLanguage: "ur",
		Temperature:     0.3,
		MaxTokens:       4000,
	}
}

// TransformResult is the outcome of one transform request.
type TransformResult struct {
	Content   string
	WasCached bool
	// Degraded is set when translation failed and the original text was
	// served instead.
	Degraded bool
}

// Transformer generates difficulty rewrites and translations of whole
// chapters, cached permanently per (chapter, kind, variant).
type Transformer struct {
	books  *store.BookStore
	cache  *store.TransformStore
	chat   llm.ChatProvider
	config *TransformConfig
}

// NewTransformer creates a transformer.
func NewTransformer(books *store.BookStore, cache *store.TransformStore, chat llm.ChatProvider, config *TransformConfig) *Transformer {
	if config == nil {
		config = DefaultTransformConfig()
	}
	return &Transformer{books: books, cache: cache, chat: chat, config: config}
}

// Rewrite returns the chapter rewritten for the given difficulty level,
// generating it on first request.
func (t *Transformer) Rewrite(ctx context.Context, chapterNumber int, difficulty string) (*TransformResult, error) {
	chapter, text, err := t.books.ChapterText(ctx, chapterNumber)
	if err != nil {
		return nil, err
	}

	content, cached, err := t.cache.GetOrCreate(ctx, chapterNumber, model.TransformRewrite, difficulty,
		func(ctx context.Context) (string, error) {
			return t.generateRewrite(ctx, chapter.Title, text, difficulty)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	metrics.Get().RecordCache(cached)
	return &TransformResult{Content: content, WasCached: cached}, nil
}

// Translate returns the chapter translated into lang (DefaultLanguage when
// empty). On generation failure it degrades to the original chapter text
// rather than erroring.
func (t *Transformer) Translate(ctx context.Context, chapterNumber int, lang string) (*TransformResult, string, error) {
	if lang == "" {
		lang = t.config.DefaultLanguage
	}

	chapter, text, err := t.books.ChapterText(ctx, chapterNumber)
	if err != nil {
		return nil, lang, err
	}

	content, cached, err := t.cache.GetOrCreate(ctx, chapterNumber, model.TransformTranslation, lang,
		func(ctx context.Context) (string, error) {
			return t.generateTranslation(ctx, chapter.Title, text, lang)
		})
	if err != nil {
		logger.Warnw("translation failed, serving original text",
			"chapter", chapterNumber, "lang", lang, "error", err)
		metrics.Get().RecordProviderError()
		return &TransformResult{Content: text, Degraded: true}, lang, nil
	}
	metrics.Get().RecordCache(cached)
	return &TransformResult{Content: content, WasCached: cached}, lang, nil
}

func (t *Transformer) generateRewrite(ctx context.Context, title, text, difficulty string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following textbook chapter for a %s-level reader. Keep all factual content and chapter structure, adjust vocabulary and depth to the level. Output only the rewritten chapter.\n\n%s\n\n%s",
		difficulty, title, text)
	return t.complete(ctx, prompt)
}

func (t *Transformer) generateTranslation(ctx context.Context, title, text, lang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following textbook chapter into the language with ISO 639-1 code %q. Preserve structure and technical terms where no established translation exists. Output only the translated chapter.\n\n%s\n\n%s",
		lang, title, text)
	return t.complete(ctx, prompt)
}

func (t *Transformer) complete(ctx context.Context, prompt string) (string, error) {
	return t.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, &llm.ChatOptions{
		Temperature: t.config.Temperature,
		MaxTokens:   t.config.MaxTokens,
	})
}
