package assembler

import (
	"github.com/telnet2/h5runner/internal/classify"
	"github.com/telnet2/h5runner/internal/merge"
	"github.com/telnet2/h5runner/pkg/chain"
)

// Use names shared by the stylesheet rules.
const (
	UseResolveURL = "resolveUrlLoader"
	UseSass       = "sassLoader"
	UseLess       = "lessLoader"
	UseStylus     = "stylusLoader"
	UseCSS        = "cssLoader"
	UsePostcss    = "postcssLoader"
	UseStyle      = "styleLoader"
	UseExtract    = "miniCssExtractLoader"
)

// CSSModules is the resolved CSS-modules setting.
type CSSModules struct {
	Enable             bool
	NamingPattern      string
	GenerateScopedName string
}

// ResolveCSSModules merges the cssModules entry of the postcss options over
// its defaults. Naming patterns other than "module" select "global".
func ResolveCSSModules(postcss merge.Layer) CSSModules {
	l := layers(defaultCSSModuleOption(), subLayer(postcss, "cssModules"))
	conf := subLayer(l, "config")

	m := CSSModules{
		Enable:        truthy(l["enable"]),
		NamingPattern: NamingGlobal,
	}
	if s, _ := conf["namingPattern"].(string); s == NamingModule {
		m.NamingPattern = NamingModule
	}
	if s, ok := conf["generateScopedName"].(string); ok && s != "" {
		m.GenerateScopedName = s
	} else {
		m.GenerateScopedName = subLayer(defaultCSSModuleOption(), "config")["generateScopedName"].(string)
	}
	return m
}

func (a *assembly) styleRules() {
	cfg := a.Config
	sourceMap := merge.Layer{"sourceMap": a.SourceMap}

	sass := a.c.Rule(RuleSass)
	sass.Test = chain.MustRegexp(sassTest)
	sass.Enforce = chain.StagePre
	sass.SetUse(UseResolveURL, chain.LoaderResolveURL, merge.Layer{}).
		SetUse(UseSass, chain.LoaderSass, layers(merge.Layer{"sourceMap": true}, cfg.SassLoaderOption))

	less := a.c.Rule(RuleLess)
	less.Test = chain.MustRegexp(lessTest)
	less.Enforce = chain.StagePre
	less.SetUse(UseLess, chain.LoaderLess, layers(sourceMap, cfg.LessLoaderOption))

	styl := a.c.Rule(RuleStylus)
	styl.Test = chain.MustRegexp(stylusTest)
	styl.Enforce = chain.StagePre
	styl.SetUse(UseStylus, chain.LoaderStylus, layers(sourceMap, cfg.StylusLoaderOption))

	a.cssRule()

	postcss := a.c.Rule(RulePostcss)
	postcss.Test = chain.MustRegexp(styleTest)
	postcss.Exclude = []chain.Condition{SkipsPostcssCondition(a.Classifier)}
	postcss.SetUse(UsePostcss, chain.LoaderPostcss, layers(sourceMap, merge.Layer{
		"ident":   "postcss",
		"plugins": a.postcssPlugins(),
	}))

	isFirstParty := FirstPartyCondition(a.Classifier)

	taroStyle := a.c.Rule(RuleTaroStyle)
	taroStyle.Test = chain.MustRegexp(styleTest)
	taroStyle.Enforce = chain.StagePost
	taroStyle.Include = []chain.Condition{isFirstParty}
	taroStyle.SetUse(UseStyle, chain.LoaderStyle, layers(
		merge.Layer{"sourceMap": a.SourceMap, "singleton": true},
		merge.Layer{"insertAt": "top"},
		cfg.StyleLoaderOption,
	))

	customStyle := a.c.Rule(RuleCustomStyle)
	customStyle.Test = chain.MustRegexp(styleTest)
	customStyle.Enforce = chain.StagePost
	customStyle.Exclude = []chain.Condition{isFirstParty}
	if a.Extract {
		customStyle.SetUse(UseExtract, chain.LoaderMiniCSSExtract, merge.Layer{})
	} else {
		customStyle.SetUse(UseStyle, chain.LoaderStyle, layers(
			merge.Layer{"sourceMap": a.SourceMap, "singleton": true},
			cfg.StyleLoaderOption,
		))
	}
}

func (a *assembly) cssRule() {
	cfg := a.Config
	css := a.c.Rule(RuleCSS)
	css.Test = chain.MustRegexp(styleTest)

	modules := ResolveCSSModules(cfg.Module.Postcss)
	if modules.Enable {
		notDependency := chain.Not(chain.Regexp(classify.DependencyRoot))

		var include chain.Condition
		modulesValue := any("global")
		if modules.NamingPattern == NamingModule {
			include = chain.And(chain.MustRegexp(moduleSuffixed), notDependency)
			modulesValue = true
		} else {
			include = chain.And(chain.Not(chain.MustRegexp(globalSuffixed)), notDependency)
		}

		scoped := css.OneOf(VariantModule)
		scoped.Include = []chain.Condition{include}
		scoped.SetUse(UseCSS, chain.LoaderCSS, layers(merge.Layer{
			"importLoaders":  1,
			"sourceMap":      a.SourceMap,
			"modules":        modulesValue,
			"localIdentName": modules.GenerateScopedName,
		}, cfg.CSSLoaderOption))
	}

	css.OneOf(VariantNormal).SetUse(UseCSS, chain.LoaderCSS, layers(merge.Layer{
		"importLoaders": 1,
		"sourceMap":     a.SourceMap,
		"modules":       false,
	}, cfg.CSSLoaderOption))
}
