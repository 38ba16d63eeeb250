// Package devserver serves the compiler's output during development, with
// history fallback, live reload and an event stream.
package devserver

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/telnet2/h5runner/internal/merge"
)

// Defaults of the base layer.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 10086
)

// Options configures the dev server.
type Options struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	HTTPS       bool   `json:"https"`
	PublicPath  string `json:"publicPath"`
	ContentBase string `json:"contentBase"`
	// HistoryAPIFallback serves Index for unknown HTML navigations. Nil
	// disables the fallback.
	HistoryAPIFallback *HistoryFallback `json:"historyApiFallback,omitempty"`
	Open               bool              `json:"open"`
	Compress           bool              `json:"compress"`
	Hot                bool              `json:"hot"`
	DisableHostCheck   bool              `json:"disableHostCheck"`
	AllowedHosts       []string          `json:"allowedHosts,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
}

// HistoryFallback configures the history API fallback.
type HistoryFallback struct {
	Index string `json:"index,omitempty"`
	// DisableDotRule also falls back for paths whose last segment has a dot.
	DisableDotRule bool `json:"disableDotRule,omitempty"`
}

// UnmarshalJSON accepts true, false or an object.
func (h *HistoryFallback) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*h = HistoryFallback{}
		return nil
	}
	type plain HistoryFallback
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("historyApiFallback must be a boolean or an object: %w", err)
	}
	*h = HistoryFallback(p)
	return nil
}

// BaseOptions is the runner's base layer, applied over DefaultLayer.
func BaseOptions() merge.Layer {
	return merge.Layer{
		"host":               DefaultHost,
		"port":               DefaultPort,
		"https":              false,
		"open":               false,
		"compress":           true,
		"hot":                true,
		"disableHostCheck":   true,
		"historyApiFallback": merge.Layer{"disableDotRule": true},
	}
}

// DefaultLayer derives the serving paths from the build output.
func DefaultLayer(publicPath, contentBase string) merge.Layer {
	publicPath = NormalizePublicPath(publicPath)
	return merge.Layer{
		"publicPath":         publicPath,
		"contentBase":        contentBase,
		"historyApiFallback": merge.Layer{"index": publicPath},
	}
}

// NormalizePublicPath adds a leading and a trailing slash.
func NormalizePublicPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Resolve merges option layers in order and decodes the result. A false
// historyApiFallback in any layer disables the fallback.
func Resolve(layers ...merge.Layer) (Options, error) {
	args := make([]any, len(layers))
	for i, l := range layers {
		args[i] = l
	}
	merged, err := merge.Merge(args...)
	if err != nil {
		return Options{}, err
	}

	fallbackOff := false
	if v, ok := merged["historyApiFallback"].(bool); ok && !v {
		fallbackOff = true
	}

	var opts Options
	if err := merge.Decode(merged, &opts); err != nil {
		return Options{}, fmt.Errorf("invalid dev server options: %w", err)
	}
	if fallbackOff {
		opts.HistoryAPIFallback = nil
	}
	opts.PublicPath = NormalizePublicPath(opts.PublicPath)
	if opts.HistoryAPIFallback != nil && opts.HistoryAPIFallback.Index == "" {
		opts.HistoryAPIFallback.Index = opts.PublicPath
	}
	if opts.ContentBase != "" {
		opts.ContentBase = filepath.Clean(opts.ContentBase)
	}
	return opts, nil
}

// Layer converts o back into an option layer.
func (o Options) Layer() merge.Layer {
	l, err := merge.FromStruct(o)
	if err != nil {
		return merge.Layer{}
	}
	return l
}

// Scheme returns "https" or "http".
func (o Options) Scheme() string {
	if o.HTTPS {
		return "https"
	}
	return "http"
}
