package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/shell"

	"github.com/telnet2/h5runner/internal/event"
	"github.com/telnet2/h5runner/internal/metrics"
	"github.com/telnet2/h5runner/pkg/chain"
)

// DefaultCommand is the compiler command line used when none is configured.
// $H5RUNNER_CONFIG expands to the written configuration file.
const DefaultCommand = `npx webpack --config "$H5RUNNER_CONFIG"`

// Environment variables handed to the compiler process.
const (
	EnvConfig  = "H5RUNNER_CONFIG"
	EnvMode    = "H5RUNNER_MODE"
	EnvBuildID = "H5RUNNER_BUILD_ID"
)

// Output line prefixes collected into Stats.
const (
	errorPrefix   = "ERROR"
	warningPrefix = "WARNING"
)

const outputTail = 20

// Options configures an ExecCompiler.
type Options struct {
	// Command is parsed with shell word-splitting rules; variables expand
	// against Env, the H5RUNNER_* variables and the process environment.
	Command string
	// Dir is the working directory of the compiler process.
	Dir string
	// CacheDir receives the finalized configuration files.
	CacheDir string
	Env      map[string]string
	// Fs is where configuration files are written. Defaults to the OS.
	Fs afero.Fs

	Watch WatchOptions
}

// ExecCompiler runs an external command per compilation. The finalized
// configuration is written as JSON and its path passed in H5RUNNER_CONFIG.
type ExecCompiler struct {
	cfg  *chain.Finalized
	opts Options
	bus  *event.Bus
}

// NewExec creates an exec compiler for cfg.
func NewExec(cfg *chain.Finalized, opts Options) (*ExecCompiler, error) {
	if cfg == nil {
		return nil, errors.New("compiler: nil configuration")
	}
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "h5runner")
	}
	if opts.Dir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.Dir = wd
		}
	}
	return &ExecCompiler{cfg: cfg, opts: opts, bus: event.NewBus()}, nil
}

// ExecFactory returns a Factory creating exec compilers with opts.
func ExecFactory(opts Options) Factory {
	return func(cfg *chain.Finalized) (Compiler, error) {
		return NewExec(cfg, opts)
	}
}

// Bus implements Compiler.
func (c *ExecCompiler) Bus() *event.Bus { return c.bus }

// Run implements Compiler.
func (c *ExecCompiler) Run(ctx context.Context) (*Stats, error) {
	path, err := c.writeConfig()
	if err != nil {
		return nil, c.fail(NewBuildID(), err, nil)
	}
	defer c.removeConfig(path)
	return c.compile(ctx, path, false)
}

// Watch implements Compiler.
func (c *ExecCompiler) Watch(ctx context.Context) (Watching, error) {
	path, err := c.writeConfig()
	if err != nil {
		return nil, c.fail(NewBuildID(), err, nil)
	}

	w, err := newWatcher(c.watchOptions())
	if err != nil {
		c.removeConfig(path)
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	wt := &watching{cancel: cancel, done: make(chan struct{}), watcher: w}
	w.start()

	go func() {
		defer close(wt.done)
		defer c.removeConfig(path)

		_, _ = c.compile(ctx, path, false)
		for {
			select {
			case <-ctx.Done():
				return
			case files, ok := <-w.changes:
				if !ok {
					return
				}
				for _, f := range files {
					c.bus.PublishSync(event.Event{Type: event.FileChanged, Data: event.FileChangedData{File: f.path, Op: f.op}})
				}
				c.bus.PublishSync(event.Event{
					Type: event.CompileInvalid,
					Data: event.CompileInvalidData{Files: changedPaths(files)},
				})
				_, _ = c.compile(ctx, path, true)
			}
		}
	}()
	return wt, nil
}

func (c *ExecCompiler) watchOptions() WatchOptions {
	wo := c.opts.Watch
	if len(wo.Dirs) == 0 {
		wo.Dirs = []string{c.opts.Dir}
	}
	if wo.Root == "" {
		wo.Root = c.opts.Dir
	}
	return wo
}

func (c *ExecCompiler) compile(ctx context.Context, configPath string, rebuild bool) (*Stats, error) {
	id := NewBuildID()
	start := time.Now()

	env := c.environ(id, configPath)
	args, err := shell.Fields(c.opts.Command, func(name string) string { return env[name] })
	if err != nil {
		return nil, c.fail(id, fmt.Errorf("invalid compiler command %q: %w", c.opts.Command, err), nil)
	}
	if len(args) == 0 {
		return nil, c.fail(id, errors.New("empty compiler command"), nil)
	}

	log.Debug().
		Str("buildID", id).
		Strs("args", args).
		Bool("rebuild", rebuild).
		Msg("starting compiler")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.opts.Dir
	cmd.Env = envList(env)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	stats := &Stats{
		BuildID:   id,
		Mode:      c.cfg.Mode,
		StartedAt: start,
		Duration:  time.Since(start),
		Rebuild:   rebuild,
	}
	lines := append(splitLines(stdout.String()), splitLines(stderr.String())...)
	stats.Warnings, stats.Errors = collect(lines)

	if runErr != nil {
		return nil, c.fail(id, runErr, tail(splitLines(stderr.String()), outputTail))
	}

	metrics.CompileSucceeded(c.cfg.Mode, rebuild, start)
	c.bus.PublishSync(event.Event{Type: event.CompileDone, Data: stats.doneData()})
	return stats, nil
}

func (c *ExecCompiler) fail(id string, err error, output []string) error {
	fatal := &FatalError{BuildID: id, Err: err, Output: output}
	metrics.CompileFailed(c.cfg.Mode)
	c.bus.PublishSync(event.Event{
		Type: event.CompileFailed,
		Data: event.CompileFailedData{BuildID: id, Error: fatal.Error()},
	})
	return fatal
}

func (c *ExecCompiler) writeConfig() (string, error) {
	data, err := json.MarshalIndent(c.cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := c.opts.Fs.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(c.opts.CacheDir, fmt.Sprintf("%s-%s.json", c.cfg.Mode, NewBuildID()))
	if err := afero.WriteFile(c.opts.Fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write configuration: %w", err)
	}
	return path, nil
}

func (c *ExecCompiler) removeConfig(path string) {
	if err := c.opts.Fs.Remove(path); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("failed to remove configuration file")
	}
}

func (c *ExecCompiler) environ(id, configPath string) map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range c.opts.Env {
		env[k] = v
	}
	env[EnvConfig] = configPath
	env[EnvMode] = c.cfg.Mode
	env[EnvBuildID] = id
	return env
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// collect sorts diagnostic lines by their ERROR / WARNING prefix.
func collect(lines []string) (warnings, errs []string) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, errorPrefix):
			errs = append(errs, strings.TrimSpace(strings.TrimLeft(trimmed[len(errorPrefix):], ":")))
		case strings.HasPrefix(trimmed, warningPrefix):
			warnings = append(warnings, strings.TrimSpace(strings.TrimLeft(trimmed[len(warningPrefix):], ":")))
		}
	}
	return warnings, errs
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

type watching struct {
	once    sync.Once
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *watcher
	err     error
}

func (w *watching) Close() error {
	w.once.Do(func() {
		w.cancel()
		w.err = w.watcher.stop()
		<-w.done
	})
	return w.err
}
