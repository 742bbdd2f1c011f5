package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/studyforge/bookqa/internal/bookqa/metrics"
	"github.com/studyforge/bookqa/internal/model"
	"github.com/studyforge/bookqa/pkg/id"
)

// ServiceConfig tunes the QA pipeline.
type ServiceConfig struct {
	// RecentTurns is how much history feeds the grounding agent.
	RecentTurns int
}

// ChatResult is the outcome of one chat request.
type ChatResult struct {
	QueryID          string
	SessionID        string
	SessionCreated   bool
	Answer           string
	Citations        model.CitationList
	RetrievalScore   float64
	Fallback         bool
	ProcessingTimeMS int64
}

// QAService runs the full question-answering pipeline: session resolution,
// retrieval, reranking, grounded generation and turn persistence.
type QAService struct {
	retriever *Retriever
	reranker  *Reranker
	agent     *GroundingAgent
	sessions  *SessionManager
	metrics   *metrics.Metrics
	config    *ServiceConfig
}

// NewQAService creates the QA service.
func NewQAService(retriever *Retriever, reranker *Reranker, agent *GroundingAgent, sessions *SessionManager, config *ServiceConfig) *QAService {
	if config == nil {
		config = &ServiceConfig{RecentTurns: 5}
	}
	return &QAService{
		retriever: retriever,
		reranker:  reranker,
		agent:     agent,
		sessions:  sessions,
		metrics:   metrics.Get(),
		config:    config,
	}
}

// Chat answers one query. chapter > 0 scopes retrieval to that chapter.
// Fallback answers are persisted like any other turn.
func (s *QAService) Chat(ctx context.Context, query, sessionID string, chapter int) (*ChatResult, error) {
	start := time.Now()
	queryID := id.NewULID()
	logger.Infow("query received", "query_id", queryID, "chapter", chapter)

	session, created, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var history []*model.Turn
	if !created {
		history, err = s.sessions.RecentTurns(ctx, session.SessionID, s.config.RecentTurns)
		if err != nil {
			logger.Warnw("failed to load history, answering without it",
				"query_id", queryID, "session_id", session.SessionID, "error", err)
			history = nil
		}
	}

	retrievalStart := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, query, chapter)
	s.metrics.ObserveStage(metrics.StageRetrieval, time.Since(retrievalStart))
	if err != nil {
		s.metrics.RecordProviderError()
		return nil, err
	}
	logger.Infow("retrieval done", "query_id", queryID, "candidates", len(candidates))

	rerankStart := time.Now()
	contexts, degraded := s.reranker.Rerank(ctx, query, candidates)
	s.metrics.ObserveStage(metrics.StageRerank, time.Since(rerankStart))
	logger.Infow("rerank done", "query_id", queryID, "kept", len(contexts), "degraded", degraded)

	generateStart := time.Now()
	answer, err := s.agent.Answer(ctx, query, contexts, history)
	s.metrics.ObserveStage(metrics.StageGeneration, time.Since(generateStart))
	if err != nil {
		s.metrics.RecordProviderError()
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	turn := &model.Turn{
		TurnID:           queryID,
		SessionID:        session.SessionID,
		Query:            query,
		Answer:           answer.Text,
		Citations:        answer.Citations,
		RetrievalScore:   answer.TopScore,
		Fallback:         answer.Fallback,
		ProcessingTimeMS: elapsed,
	}
	if err := s.sessions.AppendTurn(ctx, turn); err != nil {
		return nil, err
	}

	s.metrics.RecordQuery(answer.Fallback)
	logger.Infow("turn persisted",
		"query_id", queryID,
		"session_id", session.SessionID,
		"fallback", answer.Fallback,
		"score", answer.TopScore,
		"elapsed_ms", elapsed)

	return &ChatResult{
		QueryID:          queryID,
		SessionID:        session.SessionID,
		SessionCreated:   created,
		Answer:           answer.Text,
		Citations:        answer.Citations,
		RetrievalScore:   answer.TopScore,
		Fallback:         answer.Fallback,
		ProcessingTimeMS: elapsed,
	}, nil
}
