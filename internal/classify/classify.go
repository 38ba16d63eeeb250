// Package classify sorts module paths into the processing classes used by the
// rule assembler.
package classify

import (
	"regexp"
)

// Class is the processing class of a module path.
type Class int

const (
	// Application is project source outside the dependency root.
	Application Class = iota
	// FirstParty is the framework's own component packages.
	FirstParty
	// ModernDependency is a dependency that needs no further down-leveling.
	ModernDependency
	// OpaqueDependency is any other code under the dependency root.
	OpaqueDependency
)

func (c Class) String() string {
	switch c {
	case FirstParty:
		return "first-party"
	case ModernDependency:
		return "modern-dependency"
	case OpaqueDependency:
		return "opaque-dependency"
	default:
		return "application"
	}
}

// DependencyRoot matches paths inside the installed dependency tree.
var DependencyRoot = regexp.MustCompile(`\bnode_modules\b`)

// Packages installed by cnpm are prefixed with an underscore, hence [/\\_].
var firstPartyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@tarojs[/\\_]components`),
	regexp.MustCompile(`\btaro-components\b`),
}

var companionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@tarojs[/\\_]taro-h5`),
	regexp.MustCompile(`\btaro-h5\b`),
	regexp.MustCompile(`@tarojs[/\\_]router`),
	regexp.MustCompile(`\btaro-router\b`),
	regexp.MustCompile(`@tarojs[/\\_]redux-h5`),
	regexp.MustCompile(`\btaro-redux-h5\b`),
}

// Entry pairs a class with one of its patterns.
type Entry struct {
	Class   Class
	Pattern *regexp.Regexp
}

// Classifier holds the ordered pattern list. It is immutable after New.
type Classifier struct {
	entries []Entry
}

// New builds a classifier whose modern-dependency set is extended by extra.
// Nil patterns are ignored.
func New(extra ...*regexp.Regexp) *Classifier {
	entries := make([]Entry, 0, 2*len(firstPartyPatterns)+len(companionPatterns)+len(extra))
	for _, p := range firstPartyPatterns {
		entries = append(entries, Entry{Class: FirstParty, Pattern: p})
	}
	// The modern set includes the first-party set.
	for _, p := range firstPartyPatterns {
		entries = append(entries, Entry{Class: ModernDependency, Pattern: p})
	}
	for _, p := range companionPatterns {
		entries = append(entries, Entry{Class: ModernDependency, Pattern: p})
	}
	for _, p := range extra {
		if p != nil {
			entries = append(entries, Entry{Class: ModernDependency, Pattern: p})
		}
	}
	return &Classifier{entries: entries}
}

// Word compiles a package name into a pattern matching it on word boundaries.
func Word(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// Entries returns a copy of the ordered (class, pattern) list.
func (c *Classifier) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Classifier) matches(class Class, path string) bool {
	for _, e := range c.entries {
		if e.Class == class && e.Pattern.MatchString(path) {
			return true
		}
	}
	return false
}

// IsFirstParty reports whether path matches the first-party set.
func (c *Classifier) IsFirstParty(path string) bool {
	return c.matches(FirstParty, path)
}

// IsModern reports whether path matches the extended modern-dependency set.
func (c *Classifier) IsModern(path string) bool {
	return c.matches(ModernDependency, path)
}

// IsDependency reports whether path lies under the dependency root.
func (c *Classifier) IsDependency(path string) bool {
	return DependencyRoot.MatchString(path)
}

// Classify returns the most specific class of path.
func (c *Classifier) Classify(path string) Class {
	switch {
	case c.IsFirstParty(path):
		return FirstParty
	case c.IsModern(path):
		return ModernDependency
	case c.IsDependency(path):
		return OpaqueDependency
	default:
		return Application
	}
}

// SkipsTransform reports whether the script transform must skip path:
// dependency code is skipped unless it is a modern dependency.
func (c *Classifier) SkipsTransform(path string) bool {
	if c.IsModern(path) {
		return false
	}
	return c.IsDependency(path)
}

// SkipsPostcss reports whether dialect post-processing must skip path.
// First-party styles ship pre-processed, so they are checked before the
// modern set even though the modern set contains them.
func (c *Classifier) SkipsPostcss(path string) bool {
	if c.IsFirstParty(path) {
		return true
	}
	if c.IsModern(path) {
		return false
	}
	return c.IsDependency(path)
}
