package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/telnet2/h5runner/internal/merge"
	"github.com/telnet2/h5runner/pkg/types"
)

// Environment variables read by Load.
const (
	EnvConfig        = "H5RUNNER_CONFIG"
	EnvConfigContent = "H5RUNNER_CONFIG_CONTENT"
	EnvHost          = "H5RUNNER_HOST"
	EnvPort          = "H5RUNNER_PORT"
)

type candidate struct{ path, base string }

// ProjectDir is the per-project configuration directory.
const ProjectDir = ".h5runner"

// FileNames are the configuration file names looked up, in load order.
var FileNames = []string{"h5runner.json", "h5runner.jsonc", "h5runner.yaml", "h5runner.yml"}

// Loaded is the result of Load.
type Loaded struct {
	Config *types.BuildConfig
	// Layer is the merged configuration before decoding.
	Layer merge.Layer
	// Files lists the files that contributed a layer, in load order.
	Files []string
	// Warnings describes ignored top-level keys.
	Warnings []string
}

// Load loads the build configuration of the project in dir from multiple
// sources (priority order):
// 1. DefaultLayer(dir)
// 2. .env and .env.<mode> files, as the env section
// 3. Global config (~/.config/h5runner/)
// 4. Project config (h5runner.* then .h5runner/h5runner.*)
// 5. H5RUNNER_CONFIG file
// 6. H5RUNNER_CONFIG_CONTENT inline JSON
// 7. H5RUNNER_HOST / H5RUNNER_PORT
func Load(dir, mode string) (*Loaded, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	res := &Loaded{}
	layers := []any{DefaultLayer(abs)}

	dotenv, err := readDotenv(abs, mode)
	if err != nil {
		return nil, err
	}
	if len(dotenv) > 0 {
		layers = append(layers, merge.Layer{"env": dotenv})
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) error {
		p, err := filepath.Abs(path)
		if err != nil || loaded[p] {
			return nil
		}
		l, err := loadConfigFile(p, baseDir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		loaded[p] = true
		res.Files = append(res.Files, p)
		layers = append(layers, l)
		return nil
	}

	candidates := []candidate{}
	global := GetPaths().Config
	for _, name := range FileNames {
		candidates = append(candidates, candidate{filepath.Join(global, name), global})
	}
	for _, name := range FileNames {
		candidates = append(candidates, candidate{filepath.Join(abs, name), abs})
	}
	projectDir := filepath.Join(abs, ProjectDir)
	for _, name := range FileNames {
		candidates = append(candidates, candidate{filepath.Join(projectDir, name), projectDir})
	}
	if path := os.Getenv(EnvConfig); path != "" {
		candidates = append(candidates, candidate{path, filepath.Dir(path)})
	}
	for _, c := range candidates {
		if err := loadOnce(c.path, c.base); err != nil {
			return nil, err
		}
	}

	if content := os.Getenv(EnvConfigContent); content != "" {
		l, err := parseJSON(interpolate([]byte(content), abs))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvConfigContent, err)
		}
		layers = append(layers, l)
	}

	env, err := envOverrides()
	if err != nil {
		return nil, err
	}
	if env != nil {
		layers = append(layers, env)
	}

	merged, err := merge.Merge(layers...)
	if err != nil {
		return nil, err
	}
	res.Layer = merged
	res.Warnings = unknownKeys(merged)
	for _, w := range res.Warnings {
		log.Warn().Msg(w)
	}

	var cfg types.BuildConfig
	if err := merge.Decode(merged, &cfg); err != nil {
		return nil, fmt.Errorf("invalid build configuration: %w", err)
	}
	res.Config = &cfg
	return res, nil
}

// DefaultLayer is the lowest-priority layer for a project in dir.
func DefaultLayer(dir string) merge.Layer {
	return merge.Layer{
		"appPath":         dir,
		"sourceRoot":      types.DefaultSourceRoot,
		"outputRoot":      types.DefaultOutputRoot,
		"publicPath":      types.DefaultPublicPath,
		"staticDirectory": types.DefaultStaticDirectory,
		"chunkDirectory":  types.DefaultChunkDirectory,
		"designWidth":     types.DefaultDesignWidth,
	}
}

// readDotenv reads .env then .env.<mode>; later files win. Missing files
// are skipped.
func readDotenv(dir, mode string) (merge.Layer, error) {
	files := []string{filepath.Join(dir, ".env")}
	if mode != "" {
		files = append(files, filepath.Join(dir, ".env."+mode))
	}

	out := merge.Layer{}
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range vars {
			out[k] = v
		}
	}
	return out, nil
}

// loadConfigFile reads a single config file with interpolation support.
func loadConfigFile(path, baseDir string) (merge.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = interpolate(data, baseDir)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var l merge.Layer
		if err := yaml.Unmarshal(data, &l); err != nil {
			return nil, err
		}
		if l == nil {
			l = merge.Layer{}
		}
		return l, nil
	default:
		return parseJSON(data)
	}
}

// parseJSON parses JSON, allowing comments and trailing commas.
func parseJSON(data []byte) (merge.Layer, error) {
	var l merge.Layer
	if err := json.Unmarshal(jsonc.ToJSON(data), &l); err != nil {
		return nil, err
	}
	return l, nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders. File
// contents are escaped for use inside a double-quoted string.
func interpolate(data []byte, baseDir string) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match
		}
		quoted, _ := json.Marshal(strings.TrimRight(string(content), "\n"))
		return string(quoted[1 : len(quoted)-1])
	})
	return []byte(str)
}

// envOverrides maps H5RUNNER_HOST and H5RUNNER_PORT onto the devServer
// section.
func envOverrides() (merge.Layer, error) {
	devServer := merge.Layer{}
	if host := os.Getenv(EnvHost); host != "" {
		devServer["host"] = host
	}
	if port := os.Getenv(EnvPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 {
			return nil, fmt.Errorf("invalid %s %q", EnvPort, port)
		}
		devServer["port"] = n
	}
	if len(devServer) == 0 {
		return nil, nil
	}
	return merge.Layer{"devServer": devServer}, nil
}

// KnownKeys returns the top-level keys a configuration understands.
func KnownKeys() []string {
	t := reflect.TypeOf(types.BuildConfig{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// unknownKeys describes top-level keys that no option uses, with the
// closest known key when one is near.
func unknownKeys(l merge.Layer) []string {
	known := KnownKeys()
	isKnown := make(map[string]bool, len(known))
	for _, k := range known {
		isKnown[k] = true
	}

	var unknown []string
	for k := range l {
		if !isKnown[k] && k != "$schema" {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	warnings := make([]string, 0, len(unknown))
	for _, k := range unknown {
		if s := Suggest(k, known); s != "" {
			warnings = append(warnings, fmt.Sprintf("unknown option %q ignored, did you mean %q?", k, s))
		} else {
			warnings = append(warnings, fmt.Sprintf("unknown option %q ignored", k))
		}
	}
	return warnings
}

// Suggest returns the candidate closest to key, or "" when none is within
// a third of the key's length.
func Suggest(key string, candidates []string) string {
	best, bestDist := "", len(key)/3+1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(key), strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
