package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyforge/bookqa/internal/bookqa/store"
	"github.com/studyforge/bookqa/internal/model"
	"github.com/studyforge/bookqa/internal/pkg/textutil"
	"github.com/studyforge/bookqa/pkg/llm"
)

// FallbackAnswer is the fixed refusal returned when the context cannot
// support a grounded answer. The text is part of the API contract.
const FallbackAnswer = "I cannot answer this from the book content. This information is not covered in 'Physical AI & Humanoid Robotics Essentials'."

// ErrProviderUnavailable wraps chat provider failures so handlers can map
// them to 502 instead of treating them as a fallback answer.
var ErrProviderUnavailable = errors.New("chat provider unavailable")

const groundingSystemPrompt = `You are a teaching assistant for the textbook 'Physical AI & Humanoid Robotics Essentials'. Answer ONLY from the provided context blocks. Cite the chapters you draw from. If the context does not contain the answer, reply with exactly: ` + FallbackAnswer

// AgentConfig tunes the grounding agent.
type AgentConfig struct {
	// ConfidenceThreshold gates generation on the top context's vector
	// similarity. Rerank scores never feed the gate.
	ConfidenceThreshold float64
	// Temperature and MaxTokens apply to the completion call.
	Temperature float64
	MaxTokens   int
	// HistoryTruncate caps each history message's length in characters.
	HistoryTruncate int
}

// DefaultAgentConfig returns the standard generation parameters.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		ConfidenceThreshold: 0.7,
		Temperature:         0.3,
		MaxTokens:           500,
		HistoryTruncate:     400,
	}
}

// Answer is the grounded response for one query.
type Answer struct {
	Text      string
	Citations model.CitationList
	Fallback  bool
	// TopScore is the top context's vector similarity, reported even on
	// fallback.
	TopScore float64
}

// GroundingAgent turns reranked context into a cited answer. It enforces
// two invariants: no generation below the confidence threshold, and no
// non-fallback answer without citations.
type GroundingAgent struct {
	chat   llm.ChatProvider
	config *AgentConfig
}

// NewGroundingAgent creates a grounding agent.
func NewGroundingAgent(chat llm.ChatProvider, config *AgentConfig) *GroundingAgent {
	if config == nil {
		config = DefaultAgentConfig()
	}
	return &GroundingAgent{chat: chat, config: config}
}

// Answer produces a grounded answer for query over the given context
// chunks (sorted by descending score) and recent conversation history.
func (a *GroundingAgent) Answer(ctx context.Context, query string, contexts []*store.SearchResult, history []*model.Turn) (*Answer, error) {
	topScore := 0.0
	if len(contexts) > 0 {
		topScore = contexts[0].Score
	}

	if len(contexts) == 0 || topScore < a.config.ConfidenceThreshold {
		return &Answer{
			Text:      FallbackAnswer,
			Citations: model.CitationList{},
			Fallback:  true,
			TopScore:  topScore,
		}, nil
	}

	messages := a.buildMessages(query, contexts, history)
	reply, err := a.chat.Chat(ctx, messages, &llm.ChatOptions{
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || strings.Contains(reply, FallbackAnswer) {
		return &Answer{
			Text:      FallbackAnswer,
			Citations: model.CitationList{},
			Fallback:  true,
			TopScore:  topScore,
		}, nil
	}

	citations := buildCitations(contexts)
	if len(citations) == 0 {
		return &Answer{
			Text:      FallbackAnswer,
			Citations: model.CitationList{},
			Fallback:  true,
			TopScore:  topScore,
		}, nil
	}

	return &Answer{
		Text:      reply,
		Citations: citations,
		Fallback:  false,
		TopScore:  topScore,
	}, nil
}

func (a *GroundingAgent) buildMessages(query string, contexts []*store.SearchResult, history []*model.Turn) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: groundingSystemPrompt}}

	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: textutil.TruncateString(turn.Query, a.config.HistoryTruncate)},
			llm.Message{Role: llm.RoleAssistant, Content: textutil.TruncateString(turn.Answer, a.config.HistoryTruncate)},
		)
	}

	var b strings.Builder
	b.WriteString("Context from the book:\n\n")
	for _, res := range contexts {
		heading := res.Chunk.ChapterTitle
		if res.Chunk.SectionName != "" {
			heading += " - " + res.Chunk.SectionName
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", heading, res.Chunk.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(query)

	return append(messages, llm.Message{Role: llm.RoleUser, Content: b.String()})
}

// buildCitations emits one citation per distinct (chapter, section) pair
// across all context chunks, in order of first appearance.
func buildCitations(contexts []*store.SearchResult) model.CitationList {
	seen := make(map[string]bool)
	citations := model.CitationList{}
	for _, res := range contexts {
		key := res.Chunk.ChapterTitle + "\x00" + res.Chunk.SectionName
		if seen[key] {
			continue
		}
		seen[key] = true

		citation := model.Citation{Chapter: res.Chunk.ChapterTitle}
		if res.Chunk.SectionName != "" {
			citation.Section = res.Chunk.SectionName
			paragraph := res.Chunk.ParagraphIndex
			citation.Paragraph = &paragraph
		}
		citations = append(citations, citation)
	}
	return citations
}
