// Package build drives a production compilation or a development
// watch-and-serve loop from a caller's build configuration.
package build

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/telnet2/h5runner/internal/assembler"
	"github.com/telnet2/h5runner/internal/browser"
	"github.com/telnet2/h5runner/internal/compiler"
	"github.com/telnet2/h5runner/internal/devserver"
	"github.com/telnet2/h5runner/internal/event"
	"github.com/telnet2/h5runner/internal/logging"
	"github.com/telnet2/h5runner/internal/merge"
	"github.com/telnet2/h5runner/pkg/chain"
	"github.com/telnet2/h5runner/pkg/types"
)

// Mode is the build mode of an invocation.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// State is the lifecycle state of an invocation.
type State string

const (
	StateIdle        State = "idle"
	StateConfiguring State = "configuring"
	StateRunning     State = "running"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// DevServer is a running development server.
type DevServer interface {
	Listen(ctx context.Context, host string, port int) error
	Close(ctx context.Context) error
}

// ServerFactory creates a dev server bound to a compiler.
type ServerFactory func(opts devserver.Options, c compiler.Compiler) (DevServer, error)

// Reporter renders progress and errors for humans.
type Reporter interface {
	BindProd(bus *event.Bus)
	BindDev(url string, bus *event.Bus)
	BuildError(err error)
	Notice(key, msg string)
}

// Launcher opens a URL in a browser.
type Launcher interface {
	Open(url string) error
}

// Result describes a finished invocation. In development mode it is
// returned once the server listens; Server keeps running until closed.
type Result struct {
	State  State
	Mode   Mode
	URL    string
	Config *chain.Finalized
	// Stats is set in production mode.
	Stats *compiler.Stats
	// Server is set in development mode.
	Server DevServer
}

// Runner runs build invocations. It holds no state between invocations.
type Runner struct {
	newCompiler compiler.Factory
	newServer   ServerFactory
	reporter    Reporter
	launcher    Launcher
	cacheDir    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCompilerFactory replaces the exec compiler.
func WithCompilerFactory(f compiler.Factory) Option {
	return func(r *Runner) { r.newCompiler = f }
}

// WithServerFactory replaces the dev server.
func WithServerFactory(f ServerFactory) Option {
	return func(r *Runner) { r.newServer = f }
}

// WithReporter replaces the terminal reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithLauncher replaces the system browser.
func WithLauncher(l Launcher) Option {
	return func(r *Runner) { r.launcher = l }
}

// WithCacheDir sets where the exec compiler writes finalized configurations.
func WithCacheDir(dir string) Option {
	return func(r *Runner) { r.cacheDir = dir }
}

// NewRunner creates a runner. Unset collaborators default to the exec
// compiler, the chi dev server, the terminal reporter and the system browser.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		newServer: func(opts devserver.Options, c compiler.Compiler) (DevServer, error) {
			return devserver.New(opts, c), nil
		},
		reporter: logging.NewReporter(nil),
		launcher: browser.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build runs one invocation: the development loop when cfg.IsWatch is set,
// otherwise a production compilation.
func (r *Runner) Build(ctx context.Context, cfg *types.BuildConfig) (*Result, error) {
	inv := r.newInvocation(cfg)
	if inv.raw.IsWatch {
		return inv.dev(ctx)
	}
	return inv.prod(ctx)
}

// Configure runs the configuration stage of an invocation only and returns
// the configuration the compiler would receive.
func (r *Runner) Configure(cfg *types.BuildConfig) (*chain.Finalized, error) {
	inv := r.newInvocation(cfg)
	if !inv.raw.IsWatch {
		return inv.configure(assembler.Production, nil)
	}
	opts, err := inv.devOptions()
	if err != nil {
		return nil, err
	}
	return inv.configure(assembler.Development, opts.Layer())
}

func (r *Runner) newInvocation(cfg *types.BuildConfig) *invocation {
	if cfg == nil {
		cfg = &types.BuildConfig{}
	}
	inv := &invocation{
		Runner:  r,
		raw:     cfg,
		cfg:     cfg.WithDefaults(),
		notices: NewNotices(),
		result:  &Result{State: StateIdle, Mode: ModeProduction},
	}
	if cfg.IsWatch {
		inv.result.Mode = ModeDevelopment
	}
	return inv
}

type invocation struct {
	*Runner
	raw     *types.BuildConfig
	cfg     *types.BuildConfig
	notices *Notices
	result  *Result
}

func (inv *invocation) fail(err error) (*Result, error) {
	inv.result.State = StateFailed
	return inv.result, err
}

func (inv *invocation) compilerFactory() compiler.Factory {
	if inv.newCompiler != nil {
		return inv.newCompiler
	}
	ignore := append([]string(nil), compiler.DefaultIgnore...)
	ignore = append(ignore, inv.cfg.OutputRoot)
	return compiler.ExecFactory(compiler.Options{
		Command:  inv.cfg.CompilerCommand,
		Dir:      inv.cfg.AppPath,
		CacheDir: inv.cacheDir,
		Watch: compiler.WatchOptions{
			Dirs:   []string{absPath(inv.cfg.AppPath)},
			Root:   absPath(inv.cfg.AppPath),
			Ignore: ignore,
		},
	})
}

// configure assembles the configuration for p, lets layer seed the
// dev-server section, applies the caller's customization and finalizes.
func (inv *invocation) configure(p assembler.Profile, devServer merge.Layer) (*chain.Finalized, error) {
	inv.result.State = StateConfiguring
	inv.deprecations()

	c := assembler.Assemble(inv.cfg, p)
	if devServer != nil {
		c.DevServer = devServer
	}
	if err := inv.cfg.Chain.Mutate(c, chain.Vocabulary{}); err != nil {
		return nil, fmt.Errorf("chain customization failed: %w", err)
	}
	final := c.ToConfig()
	inv.result.Config = final
	return final, nil
}

func (inv *invocation) deprecations() {
	if inv.raw.Webpack != nil {
		inv.notices.Emit(inv.reporter, DeprecatedOptionWarning{
			Option:  "webpack",
			Message: "the webpack option is no longer supported; customize the configuration with a chain mutator instead",
		})
	}
	if inv.raw.EnableDll != nil {
		inv.notices.Emit(inv.reporter, DeprecatedOptionWarning{
			Option:  "enableDll",
			Message: "the enableDll option has been removed; vendor bundles are no longer split out",
		})
	}
}

func (inv *invocation) prod(ctx context.Context) (*Result, error) {
	final, err := inv.configure(assembler.Production, nil)
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}

	comp, err := inv.compilerFactory()(final)
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}
	defer comp.Bus().Close()
	inv.reporter.BindProd(comp.Bus())

	inv.result.State = StateRunning
	stats, err := comp.Run(ctx)
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}
	inv.result.Stats = stats
	inv.result.State = StateSucceeded
	return inv.result, nil
}

// devOptions resolves the dev-server options from the output-derived
// defaults, the base layer and the caller's section.
func (inv *invocation) devOptions() (devserver.Options, error) {
	return devserver.Resolve(
		devserver.DefaultLayer(inv.cfg.PublicPath, filepath.Join(inv.cfg.AppPath, inv.cfg.OutputRoot)),
		devserver.BaseOptions(),
		inv.cfg.DevServer,
	)
}

func (inv *invocation) dev(ctx context.Context) (*Result, error) {
	opts, err := inv.devOptions()
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}

	final, err := inv.configure(assembler.Development, opts.Layer())
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}
	// The customization hook may have changed the dev-server section.
	if opts, err = devserver.Resolve(final.DevServer); err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}
	url := DevURL(opts, inv.cfg.Router)
	inv.result.URL = url

	comp, err := inv.compilerFactory()(final)
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}
	// The bus outlives dev only when the server is up.
	serving := false
	defer func() {
		if !serving {
			comp.Bus().Close()
		}
	}()
	inv.reporter.BindDev(url, comp.Bus())

	srv, err := inv.newServer(opts, comp)
	if err != nil {
		inv.reporter.BuildError(err)
		return inv.fail(err)
	}

	inv.result.State = StateRunning
	if err := srv.Listen(ctx, opts.Host, opts.Port); err != nil {
		_ = srv.Close(context.Background())
		var watchErr *devserver.WatchError
		if errors.As(err, &watchErr) {
			inv.reporter.BuildError(err)
			return inv.fail(err)
		}
		log.Error().Err(err).Msg("dev server failed to listen")
		return inv.fail(&BindError{Addr: net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)), Err: err})
	}
	serving = true
	inv.result.Server = srv
	inv.result.State = StateSucceeded

	if opts.Open {
		go func(l Launcher) {
			if err := l.Open(url); err != nil {
				log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
			}
		}(inv.launcher)
	}
	return inv.result, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
