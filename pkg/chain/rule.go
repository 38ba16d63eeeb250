package chain

import (
	"encoding/json"
)

// Stage orders rules relative to the main pipeline.
type Stage string

const (
	StageNormal Stage = ""
	StagePre    Stage = "pre"
	StagePost   Stage = "post"
)

// Use is one processing step of a rule: a loader and its options.
type Use struct {
	Name    string         `json:"name"`
	Loader  string         `json:"loader"`
	Options map[string]any `json:"options,omitempty"`
}

// Rule is a named processing rule. A rule with oneOf variants dispatches each
// path to the first variant whose include/exclude predicates accept it; the
// last variant is expected to carry no predicate so the dispatch is total.
type Rule struct {
	name    string
	Test    Condition
	Enforce Stage
	Include []Condition
	Exclude []Condition

	uses  ordered[*Use]
	oneOf ordered[*Rule]
}

func newRule(name string) *Rule {
	return &Rule{name: name}
}

// Name returns the rule name.
func (r *Rule) Name() string { return r.name }

// Use returns the named use, creating an empty one if needed.
func (r *Rule) Use(name string) *Use {
	if u, ok := r.uses.get(name); ok {
		return u
	}
	u := &Use{Name: name}
	r.uses.set(name, u)
	return u
}

// SetUse creates or replaces the named use.
func (r *Rule) SetUse(name, loader string, options map[string]any) *Rule {
	r.uses.set(name, &Use{Name: name, Loader: loader, Options: options})
	return r
}

// DeleteUse removes the named use.
func (r *Rule) DeleteUse(name string) *Rule {
	r.uses.delete(name)
	return r
}

// Uses returns the uses in declared order.
func (r *Rule) Uses() []*Use { return r.uses.values() }

// OneOf returns the named variant, appending a new one if needed.
func (r *Rule) OneOf(name string) *Rule {
	if v, ok := r.oneOf.get(name); ok {
		return v
	}
	v := newRule(name)
	r.oneOf.set(name, v)
	return v
}

// OneOfBefore returns the named variant placed right before anchor.
func (r *Rule) OneOfBefore(name, anchor string) *Rule {
	v, ok := r.oneOf.get(name)
	if !ok {
		v = newRule(name)
	}
	r.oneOf.insertBefore(anchor, name, v)
	return v
}

// DeleteOneOf removes the named variant.
func (r *Rule) DeleteOneOf(name string) *Rule {
	r.oneOf.delete(name)
	return r
}

// OneOfs returns the variants in declared order.
func (r *Rule) OneOfs() []*Rule { return r.oneOf.values() }

// Applies reports whether the rule's test, include and exclude conditions
// accept path. Include conditions are alternatives; any exclude rejects.
func (r *Rule) Applies(path string) bool {
	if r.Test != nil && !r.Test.Match(path) {
		return false
	}
	if len(r.Include) > 0 && !anyMatch(r.Include, path) {
		return false
	}
	return !anyMatch(r.Exclude, path)
}

// Select returns the rule whose uses process path: the rule itself when it
// has no variants, otherwise the first accepting variant.
func (r *Rule) Select(path string) (*Rule, bool) {
	if r.oneOf.len() == 0 {
		return r, true
	}
	for _, v := range r.oneOf.values() {
		if v.Applies(path) {
			return v, true
		}
	}
	return nil, false
}

func (r *Rule) clone() *Rule {
	out := &Rule{
		name:    r.name,
		Test:    r.Test,
		Enforce: r.Enforce,
		Include: append([]Condition(nil), r.Include...),
		Exclude: append([]Condition(nil), r.Exclude...),
	}
	for _, u := range r.uses.values() {
		out.uses.set(u.Name, &Use{Name: u.Name, Loader: u.Loader, Options: cloneMap(u.Options)})
	}
	for _, v := range r.oneOf.values() {
		out.oneOf.set(v.name, v.clone())
	}
	return out
}

type ruleJSON struct {
	Name    string     `json:"name"`
	Test    Condition   `json:"test,omitempty"`
	Enforce Stage       `json:"enforce,omitempty"`
	Include []Condition `json:"include,omitempty"`
	Exclude []Condition `json:"exclude,omitempty"`
	Use     []*Use      `json:"use,omitempty"`
	OneOf   []ruleJSON  `json:"oneOf,omitempty"`
}

func (r *Rule) toJSON() ruleJSON {
	out := ruleJSON{
		Name:    r.name,
		Enforce: r.Enforce,
		Test:    r.Test,
		Include: r.Include,
		Exclude: r.Exclude,
		Use:     r.Uses(),
	}
	for _, v := range r.oneOf.values() {
		out.OneOf = append(out.OneOf, v.toJSON())
	}
	return out
}

// MarshalJSON renders the rule with conditions in their JSON grammar.
func (r *Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
