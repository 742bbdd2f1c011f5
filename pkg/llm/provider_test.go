package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/bookqa/pkg/llm"
)

type stubProvider struct{ name string }

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (s *stubProvider) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (string, error) {
	return "stub answer", nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistryCreatesRegisteredProviders(t *testing.T) {
	llm.RegisterProvider("stub", func(config map[string]any) (llm.Provider, error) {
		return &stubProvider{name: "stub"}, nil
	})

	embed, err := llm.NewEmbeddingProvider("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", embed.Name())

	chat, err := llm.NewChatProvider("stub", nil)
	require.NoError(t, err)

	answer, err := chat.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub answer", answer)

	assert.Contains(t, llm.ListProviders(), "stub")
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := llm.NewEmbeddingProvider("nope", nil)
	assert.Error(t, err)

	_, err = llm.NewChatProvider("nope", nil)
	assert.Error(t, err)

	_, err = llm.NewRerankProvider("nope", nil)
	assert.Error(t, err)
}
