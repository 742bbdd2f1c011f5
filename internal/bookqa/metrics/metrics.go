// Package metrics collects in-process service counters. Everything is
// atomic and lock-free; Snapshot is safe to call from a request handler.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names used for latency accounting.
const (
	StageRetrieval  = "retrieval"
	StageRerank     = "rerank"
	StageGeneration = "generation"
)

// Metrics aggregates counters for the QA pipeline and the transform cache.
type Metrics struct {
	queriesTotal   atomic.Int64
	fallbacksTotal atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	providerErrors atomic.Int64
	sessionsSwept  atomic.Int64

	stages sync.Map // stage name -> *stageStats
}

type stageStats struct {
	count   atomic.Int64
	totalNS atomic.Int64
}

var (
	global *Metrics
	once   sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{}
	})
	return global
}

// RecordQuery counts one chat query and whether it fell back.
func (m *Metrics) RecordQuery(fallback bool) {
	m.queriesTotal.Add(1)
	if fallback {
		m.fallbacksTotal.Add(1)
	}
}

// RecordCache counts one transform cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// RecordProviderError counts one upstream provider failure.
func (m *Metrics) RecordProviderError() {
	m.providerErrors.Add(1)
}

// RecordSweep counts deleted sessions from one sweeper pass.
func (m *Metrics) RecordSweep(deleted int64) {
	m.sessionsSwept.Add(deleted)
}

// ObserveStage accumulates one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	v, _ := m.stages.LoadOrStore(stage, &stageStats{})
	s := v.(*stageStats)
	s.count.Add(1)
	s.totalNS.Add(d.Nanoseconds())
}

// Snapshot returns the current counters as a JSON-friendly map.
func (m *Metrics) Snapshot() map[string]any {
	stages := map[string]any{}
	m.stages.Range(func(key, value any) bool {
		s := value.(*stageStats)
		count := s.count.Load()
		total := s.totalNS.Load()
		avgMS := float64(0)
		if count > 0 {
			avgMS = float64(total) / float64(count) / 1e6
		}
		stages[key.(string)] = map[string]any{
			"count":    count,
			"total_ms": float64(total) / 1e6,
			"avg_ms":   avgMS,
		}
		return true
	})

	return map[string]any{
		"queries_total":   m.queriesTotal.Load(),
		"fallbacks_total": m.fallbacksTotal.Load(),
		"cache_hits":      m.cacheHits.Load(),
		"cache_misses":    m.cacheMisses.Load(),
		"provider_errors": m.providerErrors.Load(),
		"sessions_swept":  m.sessionsSwept.Load(),
		"stages":          stages,
	}
}
