package devserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/telnet2/h5runner/internal/compiler"
	"github.com/telnet2/h5runner/internal/event"
	"github.com/telnet2/h5runner/internal/metrics"
)

// Server is the development server. It starts the compiler's watch loop when
// it starts listening and pushes reloads to connected pages after each
// successful compilation.
type Server struct {
	opts  Options
	comp  compiler.Compiler
	bus   *event.Bus
	fs    afero.Fs
	files *afero.HttpFs
	hub   *hub

	router *chi.Mux

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	watching compiler.Watching
	cancel   context.CancelFunc
	unsubs   []func()
	closed   bool
}

// Option configures a Server.
type Option func(*Server)

// WithFs serves files from fs instead of the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(s *Server) { s.fs = fs }
}

// New creates a server for opts, driven by comp.
func New(opts Options, comp compiler.Compiler, options ...Option) *Server {
	opts.PublicPath = NormalizePublicPath(opts.PublicPath)
	s := &Server{
		opts: opts,
		comp: comp,
		bus:  comp.Bus(),
		fs:   afero.NewOsFs(),
		hub:  newHub(),
	}
	for _, o := range options {
		o(s)
	}

	root := s.fs
	if opts.ContentBase != "" {
		root = afero.NewBasePathFs(s.fs, opts.ContentBase)
	}
	s.files = afero.NewHttpFs(root)

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()
	s.subscribe()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	if !s.opts.DisableHostCheck {
		s.router.Use(s.hostCheck)
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if s.opts.Compress {
		s.router.Use(middleware.Compress(5))
	}
	if len(s.opts.Headers) > 0 {
		s.router.Use(s.extraHeaders)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get(RouteWS, s.hub.serveWS)
	s.router.Get(RouteEvents, s.events)
	s.router.Get(RouteClientJS, serveClientJS)
	s.router.Handle(RouteMetrics, promhttp.Handler())

	s.router.Handle(s.opts.PublicPath+"*", http.HandlerFunc(s.serveStatic))
	if s.opts.PublicPath != "/" {
		// Navigations outside the public path still get the history index.
		s.router.NotFound(s.serveStatic)
	}
}

func (s *Server) subscribe() {
	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(event.CompileInvalid, func(e event.Event) {
			s.hub.broadcast(Message{Type: MessageInvalid})
		}),
		s.bus.Subscribe(event.CompileDone, func(e event.Event) {
			data := e.Data.(event.CompileDoneData)
			if data.HasErrors() {
				s.hub.broadcast(Message{Type: MessageErrors, Hash: data.BuildID, Errors: data.Errors})
				return
			}
			s.hub.broadcast(Message{Type: MessageReload, Hash: data.BuildID})
		}),
	)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Options returns the options the server was created with.
func (s *Server) Options() Options { return s.opts }

// WatchError reports that the server bound its address but the compiler's
// watch loop could not start. The listener is released before it is
// returned.
type WatchError struct {
	Err error
}

func (e *WatchError) Error() string { return "failed to start watching: " + e.Err.Error() }

func (e *WatchError) Unwrap() error { return e.Err }

// Listen binds host:port, starts the compiler's watch loop and serves in the
// background. A bind failure is returned as is and nothing is started; a
// watch failure is returned as a *WatchError.
func (s *Server) Listen(ctx context.Context, host string, port int) error {
	ln, err := s.listen(ctx, host, port)
	if err != nil {
		return err
	}

	log.Info().Str("addr", ln.Addr().String()).Bool("https", s.opts.HTTPS).Msg("dev server listening")
	s.bus.PublishSync(event.Event{
		Type: event.ServerListening,
		Data: event.ServerListeningData{
			URL:  s.opts.Scheme() + "://" + ln.Addr().String() + s.opts.PublicPath,
			Addr: ln.Addr().String(),
		},
	})
	return nil
}

func (s *Server) listen(ctx context.Context, host string, port int) (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("devserver: server closed")
	}
	if s.httpSrv != nil {
		return nil, errors.New("devserver: already listening")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	if s.opts.HTTPS {
		cert, err := selfSignedCert(host)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to create certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	}

	watching, err := s.comp.Watch(ctx)
	if err != nil {
		ln.Close()
		return nil, &WatchError{Err: err}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listener = ln
	s.watching = watching
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("dev server stopped")
		}
	}(s.httpSrv)
	return ln, nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops serving, disconnects live-reload clients and stops the watch
// loop. It is safe to call more than once.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv, watching, cancel := s.httpSrv, s.watching, s.cancel
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.hub.close()

	var errs []error
	if cancel != nil {
		cancel()
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if watching != nil {
		if err := watching.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.bus.PublishSync(event.Event{Type: event.ServerClosed})
	return errors.Join(errs...)
}

func (s *Server) extraHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range s.opts.Headers {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// hostCheck rejects requests whose Host is not a loopback name, the
// configured host or one of the allowed hosts.
func (s *Server) hostCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.hostAllowed(r.Host) {
			http.Error(w, "Invalid Host header", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hostAllowed(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if host == "localhost" || host == s.opts.Host {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return true
	}
	for _, allowed := range s.opts.AllowedHosts {
		if host == allowed || (strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed)) {
			return true
		}
	}
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		kind := "static"
		if strings.HasPrefix(r.URL.Path, RoutePrefix) {
			kind = "internal"
		}
		metrics.DevServerRequests.WithLabelValues(kind, strconv.Itoa(ww.Status())).Inc()
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("requestID", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
