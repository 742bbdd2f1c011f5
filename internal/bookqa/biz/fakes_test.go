package biz_test

import (
	"context"
	"sync"

	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/pkg/llm"
)

type fakeVectorStore struct {
	mu             sync.Mutex
	results        []*store.SearchResult
	searchErr      error
	upserted       map[string][]*store.Chunk
	ensured        []*store.CollectionConfig
	lastCollection string
	lastTopK       int
	lastChapter    int
}

func newFakeVectorStore(results ...*store.SearchResult) *fakeVectorStore {
	return &fakeVectorStore{
		results:  results,
		upserted: make(map[string][]*store.Chunk),
	}
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, config *store.CollectionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, config)
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, collection string, chunks []*store.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[collection] = append(f.upserted[collection], chunks...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, topK, chapter int) ([]*store.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCollection = collection
	f.lastTopK = topK
	f.lastChapter = chapter
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeVectorStore) Count(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeVectorStore) Close(context.Context) error                 { return nil }

type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dim)
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake-embed" }

type fakeChat struct {
	reply        string
	err          error
	calls        int
	lastMessages []llm.Message
	lastOpts     *llm.ChatOptions
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, opts *llm.ChatOptions) (string, error) {
	f.calls++
	f.lastMessages = messages
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

type fakeRerank struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeRerank) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	scores := make([]float64, len(docs))
	return scores, nil
}

func (f *fakeRerank) Name() string { return "fake-rerank" }
