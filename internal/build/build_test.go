package build_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telnet2/h5runner/internal/assembler"
	"github.com/telnet2/h5runner/internal/build"
	"github.com/telnet2/h5runner/internal/compiler"
	"github.com/telnet2/h5runner/internal/devserver"
	"github.com/telnet2/h5runner/pkg/chain"
	"github.com/telnet2/h5runner/pkg/types"
)

var _ = Describe("Runner", func() {
	var (
		ctx context.Context
		h   *harness
		cfg *types.BuildConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
		cfg = &types.BuildConfig{AppPath: "/project"}
	})

	Describe("production mode", func() {
		It("compiles once and never creates a dev server", func() {
			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.State).To(Equal(build.StateSucceeded))
			Expect(res.Mode).To(Equal(build.ModeProduction))
			Expect(res.Config.Mode).To(Equal("production"))
			Expect(res.Config.Devtool).To(Equal(assembler.DevtoolNone))
			Expect(res.Stats.BuildID).To(Equal("01TEST"))
			Expect(res.Server).To(BeNil())

			Expect(h.compilers).To(HaveLen(1))
			Expect(h.compilers[0].runs).To(Equal(1))
			Expect(h.compilers[0].watches).To(BeZero())
			Expect(h.reporter.prodBus).To(BeIdenticalTo(h.compilers[0].bus))
			Expect(h.reporter.finished).To(Equal(1))
			Expect(h.servers).To(BeEmpty())
		})

		It("relays a fatal compiler error unchanged", func() {
			fatal := &compiler.FatalError{BuildID: "01FAIL", Err: errors.New("exit status 2"), Output: []string{"ERROR in ./src/app.js"}}
			h.runErr = fatal

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).To(BeIdenticalTo(fatal))
			Expect(res.State).To(Equal(build.StateFailed))
			Expect(h.reporter.errors).To(ConsistOf(fatal))
			Expect(h.servers).To(BeEmpty())
			Expect(h.reporter.devURL).To(BeEmpty())
			Expect(h.compilers[0].watches).To(BeZero())
			Consistently(h.launcher.opened, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("closes the compiler bus when the build ends", func() {
			_, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivers(h.compilers[0].bus)).To(BeFalse())
		})

		It("applies the customization hook before finalizing", func() {
			var seenMode string
			cfg.Chain = chain.MutatorFunc(func(c *chain.Config, v chain.Vocabulary) error {
				seenMode = c.Mode
				c.DeleteRule(assembler.RuleImage)
				c.Plugin("banner").Use("BannerPlugin", map[string]any{"banner": "h5"})
				return nil
			})

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(seenMode).To(Equal("production"))

			_, hasImage := res.Config.Rule(assembler.RuleImage)
			Expect(hasImage).To(BeFalse())
			banner, ok := res.Config.Plugin("banner")
			Expect(ok).To(BeTrue())
			Expect(banner.Kind).To(Equal("BannerPlugin"))
			Expect(h.compilers[0].config).To(BeIdenticalTo(res.Config))
		})

		It("fails before creating a compiler when the hook fails", func() {
			boom := errors.New("bad rule")
			cfg.Chain = chain.MutatorFunc(func(*chain.Config, chain.Vocabulary) error { return boom })

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).To(MatchError(boom))
			Expect(res.State).To(Equal(build.StateFailed))
			Expect(h.compilers).To(BeEmpty())
			Expect(h.reporter.errors).To(HaveLen(1))
		})
	})

	Describe("deprecation notices", func() {
		BeforeEach(func() {
			cfg.Webpack = map[string]any{"module": map[string]any{}}
			cfg.EnableDll = types.Bool(true)
		})

		It("reports each deprecated option once per production invocation", func() {
			_, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.reporter.noticeCount("webpack")).To(Equal(1))
			Expect(h.reporter.noticeCount("enableDll")).To(Equal(1))
		})

		It("reports them in development mode too", func() {
			cfg.IsWatch = true
			_, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.reporter.noticeCount("webpack")).To(Equal(1))
			Expect(h.reporter.noticeCount("enableDll")).To(Equal(1))
		})

		It("starts every invocation with a fresh set", func() {
			_, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.reporter.noticeCount("webpack")).To(Equal(2))
		})

		It("stays quiet without deprecated options", func() {
			_, err := h.runner.Build(ctx, &types.BuildConfig{})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.reporter.notices).To(BeEmpty())
		})
	})

	Describe("development mode", func() {
		BeforeEach(func() {
			cfg.IsWatch = true
		})

		It("serves on the configured host and port and opens the browser", func() {
			cfg.DevServer = map[string]any{"port": 8080, "host": "localhost", "open": true}

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.State).To(Equal(build.StateSucceeded))
			Expect(res.Mode).To(Equal(build.ModeDevelopment))
			Expect(res.URL).To(Equal("http://localhost:8080/"))
			Expect(h.reporter.devURL).To(Equal("http://localhost:8080/"))

			Expect(h.servers).To(HaveLen(1))
			srv := h.servers[0]
			Expect(res.Server).To(BeIdenticalTo(srv))
			Expect(srv.host).To(Equal("localhost"))
			Expect(srv.port).To(Equal(8080))
			Expect(srv.comp).To(BeIdenticalTo(h.compilers[0]))
			Expect(h.compilers[0].runs).To(BeZero())

			Eventually(h.launcher.opened).WithTimeout(time.Second).Should(Receive(Equal("http://localhost:8080/")))
		})

		It("derives serving paths from the build output", func() {
			cfg.PublicPath = "static"

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			opts := h.servers[0].opts
			Expect(opts.PublicPath).To(Equal("/static/"))
			Expect(opts.ContentBase).To(Equal(filepath.Join("/project", types.DefaultOutputRoot)))
			Expect(opts.HistoryAPIFallback).To(Equal(&devserver.HistoryFallback{Index: "/static/", DisableDotRule: true}))
			Expect(opts.Host).To(Equal(devserver.DefaultHost))
			Expect(opts.Port).To(Equal(devserver.DefaultPort))
			Expect(res.URL).To(Equal("http://0.0.0.0:10086/"))
			Expect(res.Config.DevServer).To(HaveKeyWithValue("publicPath", "/static/"))
			Consistently(h.launcher.opened, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("uses the router basename in browser mode", func() {
			cfg.Router = &types.RouterConfig{Mode: build.RouterBrowser, Basename: "/shop"}
			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.URL).To(Equal("http://0.0.0.0:10086/shop"))
		})

		It("ignores the basename in hash mode", func() {
			cfg.Router = &types.RouterConfig{Mode: build.RouterHash, Basename: "/shop"}
			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.URL).To(Equal("http://0.0.0.0:10086/"))
		})

		It("assembles the development profile", func() {
			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Config.Mode).To(Equal("development"))
			Expect(res.Config.Devtool).To(Equal(assembler.DevtoolSourceMap))
			_, hot := res.Config.Plugin(assembler.PluginHot)
			Expect(hot).To(BeTrue())
		})

		It("lets the hook override dev-server options", func() {
			cfg.Chain = chain.MutatorFunc(func(c *chain.Config, _ chain.Vocabulary) error {
				c.DevServer["port"] = 9000
				c.DevServer["https"] = true
				return nil
			})

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.servers[0].port).To(Equal(9000))
			Expect(res.URL).To(Equal("https://0.0.0.0:9000/"))
		})

		It("returns a BindError when the server cannot listen", func() {
			cause := errors.New("listen tcp 0.0.0.0:10086: bind: address already in use")
			h.listenErr = cause
			cfg.DevServer = map[string]any{"open": true}

			res, err := h.runner.Build(ctx, cfg)
			var bindErr *build.BindError
			Expect(errors.As(err, &bindErr)).To(BeTrue())
			Expect(bindErr.Addr).To(Equal("0.0.0.0:10086"))
			Expect(errors.Is(err, cause)).To(BeTrue())

			Expect(res.State).To(Equal(build.StateFailed))
			Expect(res.Server).To(BeNil())
			Expect(h.servers[0].closed).To(Equal(1))
			Expect(delivers(h.compilers[0].bus)).To(BeFalse())
			Consistently(h.launcher.opened, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("reports a watch failure as a build error, not a bind error", func() {
			cause := errors.New("too many open files")
			h.listenErr = &devserver.WatchError{Err: cause}

			res, err := h.runner.Build(ctx, cfg)
			var bindErr *build.BindError
			Expect(errors.As(err, &bindErr)).To(BeFalse())
			var watchErr *devserver.WatchError
			Expect(errors.As(err, &watchErr)).To(BeTrue())
			Expect(errors.Is(err, cause)).To(BeTrue())

			Expect(res.State).To(Equal(build.StateFailed))
			Expect(h.reporter.errors).To(ConsistOf(err))
			Expect(h.servers[0].closed).To(Equal(1))
			Expect(delivers(h.compilers[0].bus)).To(BeFalse())
		})

		It("closes the compiler bus when the server cannot be created", func() {
			h.serverErr = errors.New("no content base")

			res, err := h.runner.Build(ctx, cfg)
			Expect(err).To(MatchError(h.serverErr))
			Expect(res.State).To(Equal(build.StateFailed))
			Expect(delivers(h.compilers[0].bus)).To(BeFalse())
		})

		It("keeps the compiler bus open while the server runs", func() {
			_, err := h.runner.Build(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivers(h.compilers[0].bus)).To(BeTrue())
		})

		It("rejects malformed dev-server options", func() {
			cfg.DevServer = map[string]any{"port": "eighty"}
			res, err := h.runner.Build(ctx, cfg)
			Expect(err).To(HaveOccurred())
			Expect(res.State).To(Equal(build.StateFailed))
			Expect(h.compilers).To(BeEmpty())
		})
	})
})

var _ = Describe("DevURL", func() {
	opts := devserver.Options{Host: "localhost", Port: 8080}

	DescribeTable("pathname",
		func(router *types.RouterConfig, want string) {
			Expect(build.DevURL(opts, router)).To(Equal(want))
		},
		Entry("no router", nil, "http://localhost:8080/"),
		Entry("hash", &types.RouterConfig{Mode: "hash"}, "http://localhost:8080/"),
		Entry("browser without basename", &types.RouterConfig{Mode: "browser"}, "http://localhost:8080/"),
		Entry("browser", &types.RouterConfig{Mode: "browser", Basename: "/app"}, "http://localhost:8080/app"),
		Entry("browser relative basename", &types.RouterConfig{Mode: "browser", Basename: "app"}, "http://localhost:8080/app"),
	)

	It("brackets IPv6 hosts", func() {
		Expect(build.DevURL(devserver.Options{Host: "::1", Port: 80, HTTPS: true}, nil)).To(Equal("https://[::1]:80/"))
	})
})

var _ = Describe("Notices", func() {
	It("emits each option once", func() {
		rep := &fakeReporter{}
		n := build.NewNotices()
		w := build.DeprecatedOptionWarning{Option: "webpack", Message: "gone"}

		Expect(n.Emit(rep, w)).To(BeTrue())
		Expect(n.Emit(rep, w)).To(BeFalse())
		Expect(n.Seen("webpack")).To(BeTrue())
		Expect(n.Seen("enableDll")).To(BeFalse())
		Expect(rep.notices).To(Equal([]notice{{"webpack", "gone"}}))
		Expect(w.Error()).To(ContainSubstring("webpack"))
	})
})
