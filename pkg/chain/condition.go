package chain

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Condition is a path predicate used by rule tests, includes and excludes.
//
// Conditions encode to JSON in the compiler's rule condition grammar:
// {"regexp": expr}, {"and": [...]}, {"or": [...]} and {"not": cond}.
type Condition interface {
	Match(path string) bool
	String() string
}

type regexpCondition struct {
	re *regexp.Regexp
}

// Regexp returns a condition matching paths against re.
func Regexp(re *regexp.Regexp) Condition {
	return regexpCondition{re: re}
}

// MustRegexp compiles expr and returns a condition for it.
func MustRegexp(expr string) Condition {
	return regexpCondition{re: regexp.MustCompile(expr)}
}

func (c regexpCondition) Match(path string) bool { return c.re.MatchString(path) }
func (c regexpCondition) String() string         { return "/" + c.re.String() + "/" }

func (c regexpCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"regexp": c.re.String()})
}

type funcCondition struct {
	name string
	fn   func(string) bool
}

// Func wraps an arbitrary predicate. The name is used when the condition is
// rendered; an external compiler only sees {"func": name}, so prefer Named
// over a pattern tree when the predicate can be expressed as one.
func Func(name string, fn func(path string) bool) Condition {
	return funcCondition{name: name, fn: fn}
}

func (c funcCondition) Match(path string) bool { return c.fn(path) }
func (c funcCondition) String() string         { return c.name + "()" }

func (c funcCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"func": c.name})
}

type namedCondition struct {
	name string
	c    Condition
}

// Named labels a condition tree. It renders as name() and encodes as the
// tree itself.
func Named(name string, c Condition) Condition {
	return namedCondition{name: name, c: c}
}

func (c namedCondition) Match(path string) bool { return c.c.Match(path) }
func (c namedCondition) String() string         { return c.name + "()" }

func (c namedCondition) MarshalJSON() ([]byte, error) { return json.Marshal(c.c) }

type andCondition []Condition

// And matches when every condition matches.
func And(conds ...Condition) Condition {
	return andCondition(conds)
}

func (c andCondition) Match(path string) bool {
	for _, cond := range c {
		if !cond.Match(path) {
			return false
		}
	}
	return true
}

func (c andCondition) String() string {
	parts := make([]string, len(c))
	for i, cond := range c {
		parts[i] = cond.String()
	}
	return "and(" + strings.Join(parts, ", ") + ")"
}

func (c andCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Condition{"and": c})
}

type orCondition []Condition

// Or matches when any condition matches. An empty Or never matches.
func Or(conds ...Condition) Condition {
	return orCondition(conds)
}

func (c orCondition) Match(path string) bool { return anyMatch(c, path) }

func (c orCondition) String() string {
	parts := make([]string, len(c))
	for i, cond := range c {
		parts[i] = cond.String()
	}
	return "or(" + strings.Join(parts, ", ") + ")"
}

func (c orCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Condition{"or": c})
}

type notCondition struct {
	c Condition
}

// Not negates a condition.
func Not(c Condition) Condition {
	return notCondition{c: c}
}

func (c notCondition) Match(path string) bool { return !c.c.Match(path) }
func (c notCondition) String() string         { return "not(" + c.c.String() + ")" }

func (c notCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Condition{"not": c.c})
}

// anyMatch reports whether any condition matches path.
func anyMatch(conds []Condition, path string) bool {
	for _, c := range conds {
		if c.Match(path) {
			return true
		}
	}
	return false
}
