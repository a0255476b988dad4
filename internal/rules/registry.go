package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyRuleID   = errors.New("rule id must not be empty")
	ErrDuplicateRule = errors.New("duplicate rule id")
	ErrUnknownRule   = errors.New("unknown rule id")
)

// Registry is an ordered, immutable set of rules.
// A registry is safe to share between goroutines.
type Registry struct {
	rules []Rule
	index map[string]int
}

var defaultRegistry = mustRegistry(defaultRules()...)

// Default returns the built-in rule set, ASYNC001 through ASYNC009.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry, keeping the order of rules.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for _, rule := range rules {
		id := rule.ID()
		if id == "" {
			return nil, ErrEmptyRuleID
		}
		if _, found := r.index[id]; found {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, id)
		}
		r.index[id] = len(r.rules)
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

func mustRegistry(rules ...Rule) *Registry {
	r, err := NewRegistry(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

// Rules returns a copy of the rules in registration order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Len returns the number of rules.
func (r *Registry) Len() int { return len(r.rules) }

// IDs returns the rule ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID()
	}
	return ids
}

// Lookup finds a rule by id.
func (r *Registry) Lookup(id string) (Rule, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.rules[i], true
}

// Fingerprint identifies the rule set, for cache keys.
func (r *Registry) Fingerprint() string {
	return strings.Join(r.IDs(), ",")
}

// Filter returns a registry restricted to selected ids (all when empty)
// minus disabled ids. Ids are matched case-insensitively.
func (r *Registry) Filter(selected, disabled []string) (*Registry, error) {
	normalize := func(ids []string) (map[string]struct{}, error) {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			id = strings.ToUpper(strings.TrimSpace(id))
			if id == "" {
				continue
			}
			if _, ok := r.index[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
			}
			set[id] = struct{}{}
		}
		return set, nil
	}

	keep, err := normalize(selected)
	if err != nil {
		return nil, err
	}
	drop, err := normalize(disabled)
	if err != nil {
		return nil, err
	}

	var filtered []Rule
	for _, rule := range r.rules {
		if _, off := drop[rule.ID()]; off {
			continue
		}
		if len(keep) > 0 {
			if _, on := keep[rule.ID()]; !on {
				continue
			}
		}
		filtered = append(filtered, rule)
	}
	return NewRegistry(filtered...)
}
