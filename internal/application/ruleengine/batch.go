package ruleengine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/infrastructure/telemetry"
)

// EvaluateRules evaluates every rule against ec and returns the results
// sorted by priority ascending. Ties keep the order of ruleIDs.
// A failing rule yields one non-decisive entry; siblings still run.
func (e *Engine) EvaluateRules(ctx context.Context, ruleIDs []string, ec rule.ExecutionContext) []*rule.EvaluationResult {
	ctx, span := telemetry.StartSpan(ctx, "ruleengine.evaluate_rules",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCount, len(ruleIDs)),
	)
	defer span.End()

	results := make([]*rule.EvaluationResult, len(ruleIDs))
	e.fanOut(len(ruleIDs), func(i int) {
		results[i] = e.EvaluateRule(ctx, ruleIDs[i], ec)
	})
	return order(results)
}

// EvaluateRulesByCategory resolves a category to rule IDs and evaluates them.
// A source failure yields a single ERROR result carrying the category.
func (e *Engine) EvaluateRulesByCategory(ctx context.Context, category string, ec rule.ExecutionContext) []*rule.EvaluationResult {
	ids, err := e.source.GetRulesByCategory(ctx, category)
	if err != nil {
		e.logger.Error("Failed to resolve rule category",
			zap.String("category", category),
			zap.Error(err),
		)
		failure := rule.NewFailure("", rule.VerdictError, fmt.Sprintf("resolve category '%s': %v", category, err))
		failure.Category = category
		failure.EvaluatedAt = e.now()
		return []*rule.EvaluationResult{failure}
	}
	return e.EvaluateRules(ctx, ids, ec)
}

// BatchEvaluateRules evaluates the active rules applicable to each context.
// Results are sorted within each context and concatenated in context order.
func (e *Engine) BatchEvaluateRules(ctx context.Context, contexts []rule.ExecutionContext) []*rule.EvaluationResult {
	ctx, span := telemetry.StartSpan(ctx, "ruleengine.batch_evaluate",
		telemetry.WithAttribute("context.count", len(contexts)),
	)
	defer span.End()

	ids, err := e.source.LoadAllActiveRules(ctx)
	if err != nil {
		e.logger.Error("Failed to load active rules", zap.Error(err))
		telemetry.RecordError(span, err)
		failure := rule.NewFailure("", rule.VerdictError, fmt.Sprintf("load active rules: %v", err))
		failure.EvaluatedAt = e.now()
		return []*rule.EvaluationResult{failure}
	}
	scopes := e.loadScopes(ctx, ids)

	type job struct {
		context int
		ruleID  string
	}
	var jobs []job
	for ci, ec := range contexts {
		for _, id := range ids {
			if scope, ok := scopes[id]; ok && !scope.AppliesTo(ec) {
				continue
			}
			jobs = append(jobs, job{context: ci, ruleID: id})
		}
	}

	results := make([]*rule.EvaluationResult, len(jobs))
	e.fanOut(len(jobs), func(i int) {
		results[i] = e.EvaluateRule(ctx, jobs[i].ruleID, contexts[jobs[i].context])
	})

	perContext := make([][]*rule.EvaluationResult, len(contexts))
	for i, j := range jobs {
		perContext[j.context] = append(perContext[j.context], results[i])
	}
	out := make([]*rule.EvaluationResult, 0, len(results))
	for _, rs := range perContext {
		out = append(out, order(rs)...)
	}
	return out
}

// WarmUp evaluates the active rules for each context so the cache is primed.
// It returns the number of decisive results.
func (e *Engine) WarmUp(ctx context.Context, contexts []rule.ExecutionContext) int {
	decisive := 0
	for _, r := range e.BatchEvaluateRules(ctx, contexts) {
		if r.Verdict.IsDecisive() {
			decisive++
		}
	}
	e.logger.Info("Rule cache warmed up",
		zap.Int("contexts", len(contexts)),
		zap.Int("decisive_results", decisive),
	)
	return decisive
}

// loadScopes fetches the scope of each rule. Rules that fail to load are
// left out so the single-evaluation path reports them.
func (e *Engine) loadScopes(ctx context.Context, ids []string) map[string]rule.Scope {
	scopes := make(map[string]rule.Scope, len(ids))
	for _, id := range ids {
		def, err := e.source.LoadRuleConfig(ctx, id)
		if err != nil || def == nil {
			continue
		}
		scopes[id] = def.Scope
	}
	return scopes
}

// fanOut calls fn for 0..n-1 on at most e.parallelism goroutines and
// returns once every call has finished.
func (e *Engine) fanOut(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := min(e.parallelism, n)
	if workers <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := range n {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// order sorts results by priority (stable) and flags matched results that
// are overridden by a higher-precedence match in the same category.
func order(results []*rule.EvaluationResult) []*rule.EvaluationResult {
	slices.SortStableFunc(results, func(a, b *rule.EvaluationResult) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	winners := make(map[string]string)
	for _, r := range results {
		if !r.Matched() || r.Category == "" {
			continue
		}
		if winner, ok := winners[r.Category]; ok {
			r.Overridden = true
			r.OverridingRuleID = winner
			continue
		}
		winners[r.Category] = r.RuleID
	}
	return results
}
