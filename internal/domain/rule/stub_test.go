package rule

import (
	"context"
	"fmt"

	"github.com/erp/attendance/internal/domain/shared"
)

type stubSource map[string]*Definition

func (s stubSource) LoadRuleConfig(_ context.Context, ruleID string) (*Definition, error) {
	def, ok := s[ruleID]
	if !ok {
		return nil, fmt.Errorf("%w: rule '%s'", shared.ErrNotFound, ruleID)
	}
	return def, nil
}

func (s stubSource) GetRulesByCategory(_ context.Context, category string) ([]string, error) {
	var ids []string
	for id, def := range s {
		if def.Category == category {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s stubSource) LoadAllActiveRules(_ context.Context) ([]string, error) {
	var ids []string
	for id, def := range s {
		if def.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
