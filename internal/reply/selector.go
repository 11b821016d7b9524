package reply

import (
	"context"
	"fmt"
)

// Selector decides the outgoing text for an observation. ok is false when
// nothing should be sent.
type Selector interface {
	Select(ctx context.Context, obs Observation) (text string, ok bool, err error)
	Backend() string
}

// RuleSelector picks the first matching rule from its store and renders it.
type RuleSelector struct {
	store     Store
	signature string
}

func NewRuleSelector(store Store, signature string) *RuleSelector {
	return &RuleSelector{store: store, signature: signature}
}

func (s *RuleSelector) Backend() string { return "rules" }

func (s *RuleSelector) Select(ctx context.Context, obs Observation) (string, bool, error) {
	rules, err := s.store.Rules(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load rules: %w", err)
	}
	rule, ok := Match(rules, obs)
	if !ok {
		return "", false, nil
	}
	return WithSignature(Render(rule.Template, obs.SenderName), s.signature), true, nil
}
