package biz

import (
	"regexp"
	"strings"

	"github.com/studyforge/bookqa/internal/pkg/textutil"
)

// ChunkerConfig tunes sentence packing.
type ChunkerConfig struct {
	// TargetTokens is the packing target per chunk.
	TargetTokens int
	// MaxTokens is the hard ceiling; sentences above it are force-split.
	MaxTokens int
	// OverlapTokens bounds the sentence overlap carried between chunks.
	OverlapTokens int
}

// DefaultChunkerConfig returns the standard packing parameters.
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{TargetTokens: 512, MaxTokens: 600, OverlapTokens: 50}
}

// Chunker packs section text into token-bounded chunks along sentence
// boundaries. Splitting is deterministic: the same input always produces
// the same chunk list.
type Chunker struct {
	config *ChunkerConfig
}

// NewChunker creates a chunker.
func NewChunker(config *ChunkerConfig) *Chunker {
	if config == nil {
		config = DefaultChunkerConfig()
	}
	return &Chunker{config: config}
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// splitSentences cuts text at ./!/? terminators. A trailing fragment with
// no terminator is kept as its own sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Split packs text into chunks of at most MaxTokens tokens, targeting
// TargetTokens. Each chunk after the first repeats the longest suffix of
// the previous chunk's sentences totalling at most OverlapTokens tokens.
// Empty or whitespace input yields no chunks.
func (c *Chunker) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks    []string
		current   []string
		curTokens int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		overlap, overlapTokens := c.overlapSuffix(current)
		current = overlap
		curTokens = overlapTokens
	}

	for _, sentence := range sentences {
		tokens := textutil.EstimateTokens(sentence)

		if tokens > c.config.MaxTokens {
			// Oversized sentence: emit pending text, then window the
			// sentence on its own without carrying overlap across it.
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
			}
			chunks = append(chunks, c.forceSplit(sentence)...)
			current = nil
			curTokens = 0
			continue
		}

		if len(current) > 0 && curTokens+tokens > c.config.TargetTokens {
			flush()
			if curTokens+tokens > c.config.MaxTokens {
				current = nil
				curTokens = 0
			}
		}
		current = append(current, sentence)
		curTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapSuffix returns the longest suffix of sentences whose token total
// stays within OverlapTokens.
func (c *Chunker) overlapSuffix(sentences []string) ([]string, int) {
	var (
		suffix []string
		total  int
	)
	for i := len(sentences) - 1; i >= 0; i-- {
		tokens := textutil.EstimateTokens(sentences[i])
		if total+tokens > c.config.OverlapTokens {
			break
		}
		suffix = append([]string{sentences[i]}, suffix...)
		total += tokens
	}
	return suffix, total
}

// forceSplit windows an oversized sentence into TargetTokens-sized pieces
// advancing by TargetTokens-OverlapTokens, so consecutive windows share
// OverlapTokens worth of text.
func (c *Chunker) forceSplit(sentence string) []string {
	runes := []rune(sentence)
	window := c.config.TargetTokens * textutil.CharsPerToken
	stride := (c.config.TargetTokens - c.config.OverlapTokens) * textutil.CharsPerToken

	var pieces []string
	for start := 0; start < len(runes); start += stride {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return pieces
}
