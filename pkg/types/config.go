// Package types holds the caller-facing build configuration.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/telnet2/h5runner/pkg/chain"
)

// Defaults applied to zero-valued fields.
const (
	DefaultSourceRoot      = "src"
	DefaultOutputRoot      = "dist"
	DefaultPublicPath      = "/"
	DefaultStaticDirectory = "static"
	DefaultChunkDirectory  = "chunk"
	DefaultDesignWidth     = 750
)

// DefaultDeviceRatio maps design widths to the px conversion ratio.
func DefaultDeviceRatio() map[string]float64 {
	return map[string]float64{
		"640": 2.34 / 2,
		"750": 1,
		"828": 1.81 / 2,
	}
}

// BuildConfig is the input of a build invocation. Map-typed fields are option
// layers merged over the runner's defaults.
type BuildConfig struct {
	// IsWatch selects the development loop instead of a production build.
	IsWatch bool `json:"isWatch,omitempty"`

	// AppPath is the project root. Relative roots below resolve against it.
	AppPath         string             `json:"appPath,omitempty"`
	SourceRoot      string             `json:"sourceRoot,omitempty"`
	OutputRoot      string             `json:"outputRoot,omitempty"`
	PublicPath      string             `json:"publicPath,omitempty"`
	StaticDirectory string             `json:"staticDirectory,omitempty"`
	ChunkDirectory  string             `json:"chunkDirectory,omitempty"`
	DesignWidth     int                `json:"designWidth,omitempty"`
	DeviceRatio     map[string]float64 `json:"deviceRatio,omitempty"`

	// Nil means "use the mode's default".
	EnableSourceMap *bool `json:"enableSourceMap,omitempty"`
	EnableExtract   *bool `json:"enableExtract,omitempty"`

	Router    *RouterConfig  `json:"router,omitempty"`
	DevServer map[string]any `json:"devServer,omitempty"`

	// Entry values are a file or a list of files.
	Entry  map[string]any `json:"entry,omitempty"`
	Output map[string]any `json:"output,omitempty"`

	Env             map[string]any `json:"env,omitempty"`
	DefineConstants map[string]any `json:"defineConstants,omitempty"`

	StyleLoaderOption    map[string]any `json:"styleLoaderOption,omitempty"`
	CSSLoaderOption      map[string]any `json:"cssLoaderOption,omitempty"`
	SassLoaderOption     map[string]any `json:"sassLoaderOption,omitempty"`
	LessLoaderOption     map[string]any `json:"lessLoaderOption,omitempty"`
	StylusLoaderOption   map[string]any `json:"stylusLoaderOption,omitempty"`
	FontURLLoaderOption  map[string]any `json:"fontUrlLoaderOption,omitempty"`
	ImageURLLoaderOption map[string]any `json:"imageUrlLoaderOption,omitempty"`
	MediaURLLoaderOption map[string]any `json:"mediaUrlLoaderOption,omitempty"`

	MiniCSSExtractPluginOption map[string]any `json:"miniCssExtractPluginOption,omitempty"`
	HTMLPluginOption           map[string]any `json:"htmlPluginOption,omitempty"`
	UglifyOptions              map[string]any `json:"uglify,omitempty"`
	CSSOOptions                map[string]any `json:"csso,omitempty"`

	// EsnextModules lists dependencies shipped in modern syntax.
	EsnextModules []ModulePattern `json:"esnextModules,omitempty"`

	Module  ModuleConfig  `json:"module,omitempty"`
	Plugins PluginsConfig `json:"plugins,omitempty"`

	// CompilerCommand is the command line of the external compiler.
	CompilerCommand string `json:"compilerCommand,omitempty"`

	// Chain customizes the assembled configuration before finalization.
	Chain chain.Mutator `json:"-"`

	// Deprecated: raw compiler options are no longer applied; use Chain.
	Webpack map[string]any `json:"webpack,omitempty"`
	// Deprecated: separate vendor bundles are no longer built.
	EnableDll *bool `json:"enableDll,omitempty"`
}

// RouterConfig selects the client-side routing mode.
type RouterConfig struct {
	Mode     string `json:"mode,omitempty"` // "hash"|"browser"
	Basename string `json:"basename,omitempty"`
}

// ModuleConfig holds module-processing options.
type ModuleConfig struct {
	Postcss map[string]any `json:"postcss,omitempty"`
}

// PluginsConfig holds per-tool plugin options.
type PluginsConfig struct {
	Babel map[string]any `json:"babel,omitempty"`
}

// ModulePattern is a package name, matched on word boundaries, or a
// pre-built pattern.
type ModulePattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Name returns a pattern for a package name.
func Name(name string) ModulePattern { return ModulePattern{Name: name} }

// Pattern returns a pre-built pattern.
func Pattern(re *regexp.Regexp) ModulePattern { return ModulePattern{Pattern: re} }

// UnmarshalJSON accepts "name" or {"pattern": "expr"}.
func (p *ModulePattern) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = ModulePattern{Name: name}
		return nil
	}
	var obj struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("esnextModules entry must be a string or {\"pattern\": ...}: %w", err)
	}
	re, err := regexp.Compile(obj.Pattern)
	if err != nil {
		return fmt.Errorf("esnextModules pattern %q: %w", obj.Pattern, err)
	}
	*p = ModulePattern{Pattern: re}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (p ModulePattern) MarshalJSON() ([]byte, error) {
	if p.Pattern != nil {
		return json.Marshal(map[string]string{"pattern": p.Pattern.String()})
	}
	return json.Marshal(p.Name)
}

// WithDefaults returns a shallow copy of c with zero-valued scalars set to
// their defaults.
func (c *BuildConfig) WithDefaults() *BuildConfig {
	out := *c
	if out.SourceRoot == "" {
		out.SourceRoot = DefaultSourceRoot
	}
	if out.OutputRoot == "" {
		out.OutputRoot = DefaultOutputRoot
	}
	if out.PublicPath == "" {
		out.PublicPath = DefaultPublicPath
	}
	if out.StaticDirectory == "" {
		out.StaticDirectory = DefaultStaticDirectory
	}
	if out.ChunkDirectory == "" {
		out.ChunkDirectory = DefaultChunkDirectory
	}
	if out.DesignWidth == 0 {
		out.DesignWidth = DefaultDesignWidth
	}
	if out.DeviceRatio == nil {
		out.DeviceRatio = DefaultDeviceRatio()
	}
	if out.Chain == nil {
		out.Chain = chain.Nop()
	}
	return &out
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
