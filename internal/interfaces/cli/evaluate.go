package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/attendance/internal/application/ruleengine"
	"github.com/erp/attendance/internal/domain/rule"
	"github.com/erp/attendance/internal/infrastructure/cache"
	"github.com/erp/attendance/internal/infrastructure/evaluator"
	"github.com/erp/attendance/internal/infrastructure/fixture"
)

// newEngine wires a rule engine over source with the configured cache.
// The returned func releases the cache.
func (a *app) newEngine(source rule.Source) (*ruleengine.Engine, func(), error) {
	evaluators, err := evaluator.NewFactoryWithDefaults(rule.NewCompiler(), a.logger.Named("evaluator"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create evaluators: %w", err)
	}

	resultCache, err := cache.NewRuleCacheFactory(a.cfg.Cache, a.cfg.Redis,
		cache.WithLogger(a.logger.Named("cache")),
		cache.WithInMemoryFallback(true),
	).CreateCache()
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := resultCache.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Warn("Failed to close rule cache", zap.Error(err))
			}
		}
	}

	engine := ruleengine.New(source, evaluators,
		ruleengine.WithCache(resultCache),
		ruleengine.WithLogger(a.logger.Named("ruleengine")),
		ruleengine.WithMetrics(a.metrics),
		ruleengine.WithParallelism(a.cfg.Engine.Parallelism),
	)
	return engine, release, nil
}

func newEvaluateCommand(a *app) *cobra.Command {
	var (
		rulesFile    string
		contextsFile string
		category     string
		ruleIDs      []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate rules from a file against execution contexts",
		Long: `Evaluate rules against every execution context in a file and print the results as JSON.

Without --rule or --category all active rules are evaluated for every context.

Example:
  attendance evaluate --rules rules.yaml --context contexts.yaml --category attendance`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := fixture.LoadRules(rulesFile)
			if err != nil {
				return err
			}
			contexts, err := fixture.LoadContexts(contextsFile)
			if err != nil {
				return err
			}

			engine, release, err := a.newEngine(fixture.NewMemorySource(defs...))
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			var results []*rule.EvaluationResult
			switch {
			case len(ruleIDs) > 0:
				for _, ec := range contexts {
					results = append(results, engine.EvaluateRules(ctx, ruleIDs, ec)...)
				}
			case category != "":
				for _, ec := range contexts {
					results = append(results, engine.EvaluateRulesByCategory(ctx, category, ec)...)
				}
			default:
				results = engine.BatchEvaluateRules(ctx, contexts)
			}

			a.logger.Info("Evaluation finished",
				zap.Int("rules", len(defs)),
				zap.Int("contexts", len(contexts)),
				zap.Int("results", len(results)),
			)
			if results == nil {
				results = []*rule.EvaluationResult{}
			}
			return writeJSON(cmd, results)
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "Path to rules YAML file")
	cmd.Flags().StringVar(&contextsFile, "context", "", "Path to execution contexts YAML file")
	cmd.Flags().StringVar(&category, "category", "", "Evaluate only the active rules of this category")
	cmd.Flags().StringSliceVar(&ruleIDs, "rule", nil, "Evaluate only these rule IDs (repeatable)")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("context")
	cmd.MarkFlagsMutuallyExclusive("rule", "category")
	return cmd
}
