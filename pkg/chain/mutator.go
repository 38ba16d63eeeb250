package chain

import "regexp"

// Mutator customizes an assembled configuration before it is finalized.
type Mutator interface {
	Mutate(c *Config, v Vocabulary) error
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc func(c *Config, v Vocabulary) error

// Mutate calls f(c, v).
func (f MutatorFunc) Mutate(c *Config, v Vocabulary) error { return f(c, v) }

type nopMutator struct{}

func (nopMutator) Mutate(*Config, Vocabulary) error { return nil }

// Nop returns a mutator that changes nothing.
func Nop() Mutator { return nopMutator{} }

// Loader names understood by the compiler.
const (
	LoaderStyle          = "style-loader"
	LoaderCSS            = "css-loader"
	LoaderPostcss        = "postcss-loader"
	LoaderResolveURL     = "resolve-url-loader"
	LoaderSass           = "sass-loader"
	LoaderLess           = "less-loader"
	LoaderStylus         = "stylus-loader"
	LoaderBabel          = "babel-loader"
	LoaderURL            = "url-loader"
	LoaderMiniCSSExtract = "mini-css-extract-plugin/loader"
)

// Plugin kinds understood by the compiler.
const (
	PluginHTML                 = "HtmlWebpackPlugin"
	PluginDefine               = "DefinePlugin"
	PluginMiniCSSExtract       = "MiniCssExtractPlugin"
	PluginHotModuleReplacement = "HotModuleReplacementPlugin"
	PluginUglifyJS             = "UglifyJsPlugin"
	PluginCsso                 = "CssoWebpackPlugin"
)

// Vocabulary is the handle a Mutator receives alongside the configuration.
// It exposes constructors for the values a configuration is built from.
type Vocabulary struct{}

// Regexp compiles expr into a condition.
func (Vocabulary) Regexp(expr string) (Condition, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return Regexp(re), nil
}

// Func wraps a predicate into a condition.
func (Vocabulary) Func(name string, fn func(path string) bool) Condition {
	return Func(name, fn)
}

// And combines conditions.
func (Vocabulary) And(conds ...Condition) Condition { return And(conds...) }

// Or matches when any condition matches.
func (Vocabulary) Or(conds ...Condition) Condition { return Or(conds...) }

// Not negates a condition.
func (Vocabulary) Not(c Condition) Condition { return Not(c) }

// Named labels a condition tree.
func (Vocabulary) Named(name string, c Condition) Condition { return Named(name, c) }

// NewPlugin builds a detached plugin value.
func (Vocabulary) NewPlugin(name, kind string, args ...any) *Plugin {
	return &Plugin{Name: name, Kind: kind, Args: args}
}
