// Package assembler turns a caller's build configuration into the ordered,
// named rule set, entries, output and plugins the compiler runs with.
package assembler

import (
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/telnet2/h5runner/internal/classify"
	"github.com/telnet2/h5runner/internal/merge"
	"github.com/telnet2/h5runner/pkg/chain"
	"github.com/telnet2/h5runner/pkg/types"
)

// Profile holds the mode-specific defaults of an assembly.
type Profile struct {
	Mode      string
	Extract   bool
	Minify    bool
	SourceMap bool
	Hot       bool
}

// Built-in profiles.
var (
	Production  = Profile{Mode: "production", Extract: true, Minify: true}
	Development = Profile{Mode: "development", SourceMap: true, Hot: true}
)

// Devtool values.
const (
	DevtoolSourceMap = "cheap-module-eval-source-map"
	DevtoolNone      = "none"
)

// Entry defaults.
const (
	DefaultEntryName = "app"
	TempDirectory    = ".temp"
)

// Rule names, in the order they are declared.
const (
	RuleSass        = "sass"
	RuleLess        = "less"
	RuleStylus      = "styl"
	RuleCSS         = "css"
	RulePostcss     = "postcss"
	RuleTaroStyle   = "taroStyle"
	RuleCustomStyle = "customStyle"
	RuleScript      = "jsx"
	RuleMedia       = "media"
	RuleFont        = "font"
	RuleImage       = "image"
)

// OneOf variant names of the css rule.
const (
	VariantModule = "module"
	VariantNormal = "normal"
)

// Plugin names.
const (
	PluginHTML           = "htmlWebpackPlugin"
	PluginDefine         = "definePlugin"
	PluginMiniCSSExtract = "miniCssExtractPlugin"
	PluginHot            = "hotModuleReplacementPlugin"
	MinimizerUglifyJS    = "uglifyJsPlugin"
	MinimizerCsso        = "cssoWebpackPlugin"
)

// Options is the resolved input of an assembly.
type Options struct {
	Config     *types.BuildConfig
	Profile    Profile
	Extract    bool
	SourceMap  bool
	Classifier *classify.Classifier
}

// Resolve applies defaults to cfg and lets the caller's explicit
// enableExtract / enableSourceMap override the profile.
func Resolve(cfg *types.BuildConfig, p Profile) Options {
	if cfg == nil {
		cfg = &types.BuildConfig{}
	}
	cfg = cfg.WithDefaults()

	opts := Options{
		Config:    cfg,
		Profile:   p,
		Extract:   p.Extract,
		SourceMap: p.SourceMap,
	}
	if cfg.EnableExtract != nil {
		opts.Extract = *cfg.EnableExtract
	}
	if cfg.EnableSourceMap != nil {
		opts.SourceMap = *cfg.EnableSourceMap
	}

	extra := make([]*regexp.Regexp, 0, len(cfg.EsnextModules))
	for _, m := range cfg.EsnextModules {
		switch {
		case m.Pattern != nil:
			extra = append(extra, m.Pattern)
		case m.Name != "":
			extra = append(extra, classify.Word(m.Name))
		}
	}
	opts.Classifier = classify.New(extra...)
	return opts
}

// Assemble builds the configuration for cfg under profile p. It never fails:
// option values of the wrong shape are ignored in favor of the defaults.
func Assemble(cfg *types.BuildConfig, p Profile) *chain.Config {
	return AssembleOptions(Resolve(cfg, p))
}

// AssembleOptions builds the configuration from resolved options.
func AssembleOptions(opts Options) *chain.Config {
	a := &assembly{Options: opts, c: chain.New()}

	a.c.Mode = opts.Profile.Mode
	a.c.Devtool = Devtool(opts.SourceMap)
	a.entry()
	a.output()
	a.c.Resolve = merge.MustMerge(defaultResolve())
	a.styleRules()
	a.scriptRule()
	a.assetRules()
	a.plugins()

	log.Debug().
		Str("mode", opts.Profile.Mode).
		Bool("extract", opts.Extract).
		Bool("sourceMap", opts.SourceMap).
		Int("rules", len(a.c.Rules())).
		Int("plugins", len(a.c.Plugins())).
		Msg("configuration assembled")
	return a.c
}

// Devtool returns the source-map policy for the given setting.
func Devtool(sourceMap bool) string {
	if sourceMap {
		return DevtoolSourceMap
	}
	return DevtoolNone
}

type assembly struct {
	Options
	c *chain.Config
}

func (a *assembly) entry() {
	a.c.SetEntry(DefaultEntryName, filepath.ToSlash(filepath.Join(TempDirectory, "app.js")))

	for _, name := range sortedKeys(a.Config.Entry) {
		files := entryFiles(a.Config.Entry[name])
		if len(files) == 0 {
			continue
		}
		a.c.SetEntry(name, files...)
	}
}

func entryFiles(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		files := make([]string, 0, len(t))
		for _, f := range t {
			if s, ok := f.(string); ok {
				files = append(files, s)
			}
		}
		return files
	}
	return nil
}

func (a *assembly) output() {
	cfg := a.Config
	a.c.Output = layers(merge.Layer{
		"path":          filepath.Join(cfg.AppPath, cfg.OutputRoot),
		"filename":      "js/[name].js",
		"chunkFilename": cfg.ChunkDirectory + "/[name].js",
		"publicPath":    cfg.PublicPath,
	}, cfg.Output)
}

// layers merges option layers whose roots are always mappings.
func layers(ls ...merge.Layer) merge.Layer {
	args := make([]any, len(ls))
	for i, l := range ls {
		args[i] = l
	}
	return merge.MustMerge(args...)
}

// subLayer returns l[key] when it is a mapping.
func subLayer(l merge.Layer, key string) merge.Layer {
	if l == nil {
		return nil
	}
	switch v := l[key].(type) {
	case map[string]any:
		return v
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case nil:
		return false
	}
	return true
}
