package assembler

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/telnet2/h5runner/internal/merge"
	"github.com/telnet2/h5runner/pkg/chain"
)

// Use names of the script and asset rules.
const (
	UseBabel = "babelLoader"
	UseURL   = "urlLoader"
)

// Postcss entries with built-in defaults. They are never treated as custom
// plugins.
const (
	PostcssAutoprefixer = "autoprefixer"
	PostcssPxtransform  = "pxtransform"
	PostcssCSSModules   = "cssModules"
)

func (a *assembly) scriptRule() {
	jsx := a.c.Rule(RuleScript)
	jsx.Test = chain.MustRegexp(scriptTest)
	jsx.Exclude = []chain.Condition{SkipsTransformCondition(a.Classifier)}
	jsx.SetUse(UseBabel, chain.LoaderBabel, layers(
		defaultBabelLoaderOption(),
		a.Config.Plugins.Babel,
		merge.Layer{"sourceMap": a.SourceMap},
	))
}

func (a *assembly) assetRules() {
	cfg := a.Config
	assets := []struct {
		rule, test, dir string
		option          merge.Layer
	}{
		{RuleMedia, mediaTest, "media", cfg.MediaURLLoaderOption},
		{RuleFont, fontTest, "fonts", cfg.FontURLLoaderOption},
		{RuleImage, imageTest, "images", cfg.ImageURLLoaderOption},
	}
	for _, as := range assets {
		r := a.c.Rule(as.rule)
		r.Test = chain.MustRegexp(as.test)
		r.SetUse(UseURL, chain.LoaderURL, layers(
			merge.Layer{"name": cfg.StaticDirectory + "/" + as.dir + "/[name].[ext]"},
			defaultURLLoaderOption(),
			as.option,
		))
	}
}

// postcssPlugins returns the ordered postcss plugin list: autoprefixer,
// pxtransform, then every other enabled entry by name.
func (a *assembly) postcssPlugins() []any {
	cfg := a.Config
	postcss := cfg.Module.Postcss

	pxDefaults := defaultPxtransformOption()
	pxConfig := subLayer(pxDefaults, "config")
	if cfg.DesignWidth != 0 {
		pxConfig["designWidth"] = cfg.DesignWidth
	}
	if len(cfg.DeviceRatio) > 0 {
		ratio := make(merge.Layer, len(cfg.DeviceRatio))
		for k, v := range cfg.DeviceRatio {
			ratio[k] = v
		}
		pxConfig["deviceRatio"] = ratio
	}

	var plugins []any
	builtin := []struct {
		name     string
		defaults merge.Layer
	}{
		{PostcssAutoprefixer, defaultAutoprefixerOption()},
		{PostcssPxtransform, pxDefaults},
	}
	for _, b := range builtin {
		opt := layers(b.defaults, subLayer(postcss, b.name))
		if !truthy(opt["enable"]) {
			continue
		}
		plugins = append(plugins, postcssPlugin(b.name, subLayer(opt, "config")))
	}

	for _, name := range sortedKeys(postcss) {
		if name == PostcssAutoprefixer || name == PostcssPxtransform || name == PostcssCSSModules {
			continue
		}
		opt := subLayer(postcss, name)
		if opt == nil || !truthy(opt["enable"]) {
			continue
		}
		plugins = append(plugins, postcssPlugin(a.pluginPath(name), subLayer(opt, "config")))
	}
	return plugins
}

// pluginPath resolves project-local plugin references against the app path.
// Package names are returned as they are.
func (a *assembly) pluginPath(name string) string {
	if strings.HasPrefix(name, ".") || filepath.IsAbs(name) {
		return filepath.Join(a.Config.AppPath, name)
	}
	return name
}

func postcssPlugin(name string, config merge.Layer) merge.Layer {
	return merge.Layer{"name": name, "options": layers(config)}
}

func (a *assembly) plugins() {
	cfg := a.Config

	a.c.Plugin(PluginHTML).Use(chain.PluginHTML, layers(merge.Layer{
		"filename": "index.html",
		"template": filepath.Join(cfg.AppPath, cfg.SourceRoot, "index.html"),
	}, cfg.HTMLPluginOption))

	a.c.Plugin(PluginDefine).Use(chain.PluginDefine, layers(
		processEnv(merge.Layer{"NODE_ENV": a.Profile.Mode}),
		processEnv(cfg.Env),
		cfg.DefineConstants,
	))

	if a.Extract {
		a.c.Plugin(PluginMiniCSSExtract).Use(chain.PluginMiniCSSExtract, layers(merge.Layer{
			"filename":      "css/[name].css",
			"chunkFilename": "css/[id].css",
		}, cfg.MiniCSSExtractPluginOption))
	}

	if a.Profile.Hot {
		a.c.Plugin(PluginHot).Use(chain.PluginHotModuleReplacement)
	}

	if a.Profile.Minify {
		a.c.Minimize = true
		a.c.Minimizer(MinimizerUglifyJS).Use(chain.PluginUglifyJS, merge.Layer{
			"cache":         true,
			"parallel":      true,
			"sourceMap":     a.SourceMap,
			"uglifyOptions": layers(defaultUglifyJSOption(), cfg.UglifyOptions),
		})
		a.c.Minimizer(MinimizerCsso).Use(chain.PluginCsso, layers(defaultCSSCompressOption(), cfg.CSSOOptions))
	}
}

// processEnv maps env keys to process.env.KEY expressions. String values are
// JSON-quoted so they are substituted as string literals.
func processEnv(env merge.Layer) merge.Layer {
	if len(env) == 0 {
		return nil
	}
	out := make(merge.Layer, len(env))
	for k, v := range env {
		if s, ok := v.(string); ok {
			quoted, _ := json.Marshal(s)
			v = string(quoted)
		}
		out["process.env."+k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
