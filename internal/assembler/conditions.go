package assembler

import (
	"github.com/telnet2/h5runner/internal/classify"
	"github.com/telnet2/h5runner/pkg/chain"
)

// Classifier predicates as pattern trees, so the rule set the compiler
// receives carries every pattern instead of an opaque predicate name.
// Each tree matches exactly the paths its classify counterpart accepts.

func classPatterns(c *classify.Classifier, class classify.Class) chain.Condition {
	var conds []chain.Condition
	for _, e := range c.Entries() {
		if e.Class == class {
			conds = append(conds, chain.Regexp(e.Pattern))
		}
	}
	return chain.Or(conds...)
}

// FirstPartyCondition matches what Classifier.IsFirstParty accepts.
func FirstPartyCondition(c *classify.Classifier) chain.Condition {
	return chain.Named("isFirstParty", classPatterns(c, classify.FirstParty))
}

// SkipsTransformCondition matches what Classifier.SkipsTransform accepts.
func SkipsTransformCondition(c *classify.Classifier) chain.Condition {
	return chain.Named("skipsTransform", opaqueDependency(c))
}

// SkipsPostcssCondition matches what Classifier.SkipsPostcss accepts.
func SkipsPostcssCondition(c *classify.Classifier) chain.Condition {
	return chain.Named("skipsPostcss", chain.Or(
		classPatterns(c, classify.FirstParty),
		opaqueDependency(c),
	))
}

func opaqueDependency(c *classify.Classifier) chain.Condition {
	return chain.And(
		chain.Regexp(classify.DependencyRoot),
		chain.Not(classPatterns(c, classify.ModernDependency)),
	)
}
