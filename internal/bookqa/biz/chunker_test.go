package biz_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/internal/bookqa/biz"
	"github.com/studyforge/bookqa/internal/pkg/textutil"
)

func TestSplitEmptyInput(t *testing.T) {
	c := biz.NewChunker(nil)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := biz.NewChunker(nil)
	chunks := c.Split("Robots sense the world. They act on it.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Robots sense the world. They act on it.", chunks[0])
}

func TestSplitKeepsTrailingFragment(t *testing.T) {
	c := biz.NewChunker(nil)
	chunks := c.Split("A full sentence. And a dangling fragment")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "dangling fragment")
}

func TestSplitIsDeterministic(t *testing.T) {
	c := biz.NewChunker(nil)
	text := strings.Repeat("Actuators convert commands into motion through joints and linkages. ", 200)
	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitRespectsMaxTokens(t *testing.T) {
	config := &biz.ChunkerConfig{TargetTokens: 512, MaxTokens: 600, OverlapTokens: 50}
	c := biz.NewChunker(config)
	text := strings.Repeat("Humanoid balance control depends on the zero moment point criterion. ", 300)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, textutil.EstimateTokens(chunk), config.MaxTokens, "chunk %d over budget", i)
	}
}

func TestSplitAdjacentChunksOverlap(t *testing.T) {
	config := &biz.ChunkerConfig{TargetTokens: 20, MaxTokens: 30, OverlapTokens: 10}
	c := biz.NewChunker(config)
	text := "First sentence about torque. Second sentence about gears. Third sentence about motors. Fourth sentence about sensors. Fifth sentence about control."

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		lastSentence := prev[strings.LastIndex(prev[:len(prev)-1], ".")+1:]
		assert.True(t, strings.HasPrefix(chunks[i], strings.TrimSpace(lastSentence)),
			"chunk %d does not start with the previous chunk's last sentence", i)
	}
}

func TestSplitForcesOversizedSentence(t *testing.T) {
	config := &biz.ChunkerConfig{TargetTokens: 10, MaxTokens: 15, OverlapTokens: 2}
	c := biz.NewChunker(config)
	// One "sentence" with no terminators until the very end.
	text := strings.Repeat("x", 300) + "."

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, textutil.EstimateTokens(chunk), config.MaxTokens, "window %d over budget", i)
	}

	// Consecutive windows share text because the stride is below the
	// window size.
	window := chunks[0]
	assert.True(t, strings.Contains(text, window))
}
