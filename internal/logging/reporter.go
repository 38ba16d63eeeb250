package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/telnet2/h5runner/internal/compiler"
	"github.com/telnet2/h5runner/internal/event"
)

// Reporter renders build progress for humans. Structured records of the same
// events go to the zerolog Logger.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer

	compiling bool
	shownURL  bool

	ok   *color.Color
	warn *color.Color
	fail *color.Color
	dim  *color.Color
	link *color.Color
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithNoColor disables colored output.
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		if noColor {
			for _, c := range []*color.Color{r.ok, r.warn, r.fail, r.dim, r.link} {
				c.DisableColor()
			}
		}
	}
}

// NewReporter creates a reporter writing to out, or stdout when out is nil.
func NewReporter(out io.Writer, opts ...ReporterOption) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	r := &Reporter{
		out:  out,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.FgHiBlack),
		link: color.New(color.FgCyan, color.Underline),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BindProd reports the one-shot compilation published on bus.
func (r *Reporter) BindProd(bus *event.Bus) {
	r.println(r.dim, "Compiling for production...")
	trace(bus)
	bus.Subscribe(event.CompileDone, func(e event.Event) {
		r.done(e.Data.(event.CompileDoneData))
	})
}

// BindDev reports every (re)compilation published on bus. url is shown after
// the first successful compilation.
func (r *Reporter) BindDev(url string, bus *event.Bus) {
	r.mu.Lock()
	r.compiling = true
	r.mu.Unlock()

	r.println(r.dim, "Starting development server...")
	trace(bus)
	bus.Subscribe(event.CompileInvalid, func(e event.Event) {
		r.mu.Lock()
		already := r.compiling
		r.compiling = true
		r.mu.Unlock()
		if !already {
			r.println(r.dim, "Compiling...")
		}
	})
	bus.Subscribe(event.CompileDone, func(e event.Event) {
		r.mu.Lock()
		r.compiling = false
		r.mu.Unlock()
		data := e.Data.(event.CompileDoneData)
		r.done(data)
		if data.HasErrors() {
			return
		}

		r.mu.Lock()
		show := !r.shownURL
		r.shownURL = true
		r.mu.Unlock()
		if show {
			r.printf(nil, "\nOpen %s in a browser to preview.\n\n", r.link.Sprint(url))
		}
	})
	bus.Subscribe(event.CompileFailed, func(e event.Event) {
		r.mu.Lock()
		r.compiling = false
		r.mu.Unlock()
		r.println(r.fail, "Failed to compile.")
		r.println(nil, e.Data.(event.CompileFailedData).Error)
	})
}

// trace records every hook published on bus at debug level.
func trace(bus *event.Bus) {
	bus.SubscribeAll(func(e event.Event) {
		Logger.Debug().Str("event", string(e.Type)).Interface("data", e.Data).Msg("compiler hook")
	})
}

func (r *Reporter) done(data event.CompileDoneData) {
	Logger.Info().
		Str("buildID", data.BuildID).
		Dur("duration", data.Duration).
		Int("errors", len(data.Errors)).
		Int("warnings", len(data.Warnings)).
		Bool("rebuild", data.Rebuild).
		Msg("compilation finished")

	switch {
	case data.HasErrors():
		r.println(r.fail, "Failed to compile.")
		for _, msg := range data.Errors {
			r.println(nil, msg)
		}
	case len(data.Warnings) > 0:
		r.println(r.warn, "Compiled with warnings.")
		for _, msg := range data.Warnings {
			r.println(nil, msg)
		}
	default:
		r.printf(r.ok, "Compiled successfully in %s.\n", data.Duration.Round(time.Millisecond))
	}
}

// BuildError prints a formatted report of a fatal build error.
func (r *Reporter) BuildError(err error) {
	if err == nil {
		return
	}
	Logger.Error().Err(err).Msg("build failed")

	r.println(r.fail, "Failed to compile.")
	var fatal *compiler.FatalError
	if errors.As(err, &fatal) {
		r.println(nil, fatal.Err.Error())
		for _, line := range fatal.Output {
			r.println(r.dim, line)
		}
		return
	}
	r.println(nil, err.Error())
}

// Notice prints a non-fatal warning identified by key.
func (r *Reporter) Notice(key, msg string) {
	Logger.Warn().Str("key", key).Msg(msg)
	r.printf(r.warn, "warning: %s\n", msg)
}

func (r *Reporter) println(c *color.Color, msg string) {
	r.printf(c, "%s\n", msg)
}

func (r *Reporter) printf(c *color.Color, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		fmt.Fprintf(r.out, format, args...)
		return
	}
	c.Fprintf(r.out, format, args...)
}
