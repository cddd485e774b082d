package ruleengine

import (
	"sync/atomic"
	"time"

	"github.com/erp/attendance/internal/domain/rule"
)

// Stats summarizes the evaluations an Engine has performed
type Stats struct {
	Total           int64         `json:"total"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	CacheHits       int64         `json:"cache_hits"`
	AverageDuration time.Duration `json:"average_duration"`
}

type counters struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	nanos     atomic.Int64
}

func (c *counters) record(r *rule.EvaluationResult, cached bool) {
	c.total.Add(1)
	if r.Verdict.IsDecisive() {
		c.succeeded.Add(1)
	} else {
		c.failed.Add(1)
	}
	if cached {
		c.cacheHits.Add(1)
		return
	}
	c.nanos.Add(int64(r.Duration))
}

// Stats returns a snapshot of the evaluation counters. AverageDuration
// covers evaluations that were not served from the cache.
func (e *Engine) Stats() Stats {
	s := Stats{
		Total:     e.stats.total.Load(),
		Succeeded: e.stats.succeeded.Load(),
		Failed:    e.stats.failed.Load(),
		CacheHits: e.stats.cacheHits.Load(),
	}
	if computed := s.Total - s.CacheHits; computed > 0 {
		s.AverageDuration = time.Duration(e.stats.nanos.Load() / computed)
	}
	return s
}

// ResetStats zeroes the evaluation counters
func (e *Engine) ResetStats() {
	e.stats.total.Store(0)
	e.stats.succeeded.Store(0)
	e.stats.failed.Store(0)
	e.stats.cacheHits.Store(0)
	e.stats.nanos.Store(0)
}
