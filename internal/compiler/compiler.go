// Package compiler runs the external bundler against a finalized
// configuration and reports its progress on an event bus.
package compiler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/telnet2/h5runner/internal/event"
	"github.com/telnet2/h5runner/pkg/chain"
)

// Compiler compiles a finalized configuration once or continuously.
type Compiler interface {
	// Bus is where compile.* hooks are published.
	Bus() *event.Bus
	// Run compiles once. A non-nil error is a *FatalError.
	Run(ctx context.Context) (*Stats, error)
	// Watch compiles, then recompiles on source changes until the returned
	// Watching is closed or ctx is done.
	Watch(ctx context.Context) (Watching, error)
}

// Watching is a running watch loop.
type Watching interface {
	Close() error
}

// Factory creates a compiler for a finalized configuration.
type Factory func(cfg *chain.Finalized) (Compiler, error)

// Stats describes one finished compilation.
type Stats struct {
	BuildID   string        `json:"buildID"`
	Mode      string        `json:"mode"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Warnings  []string      `json:"warnings,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
	Rebuild   bool          `json:"rebuild"`
}

// HasErrors reports whether the compilation produced errors.
func (s *Stats) HasErrors() bool { return len(s.Errors) > 0 }

// HasWarnings reports whether the compilation produced warnings.
func (s *Stats) HasWarnings() bool { return len(s.Warnings) > 0 }

func (s *Stats) doneData() event.CompileDoneData {
	return event.CompileDoneData{
		BuildID:  s.BuildID,
		Duration: s.Duration,
		Warnings: s.Warnings,
		Errors:   s.Errors,
		Rebuild:  s.Rebuild,
	}
}

// FatalError is returned when the compiler could not complete at all.
type FatalError struct {
	BuildID string
	Err     error
	// Output is the tail of the compiler's diagnostic output.
	Output []string
}

func (e *FatalError) Error() string {
	if len(e.Output) == 0 {
		return fmt.Sprintf("compilation %s failed: %v", e.BuildID, e.Err)
	}
	return fmt.Sprintf("compilation %s failed: %v\n%s", e.BuildID, e.Err, strings.Join(e.Output, "\n"))
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewBuildID returns a sortable, unique build id.
func NewBuildID() string {
	return ulid.Make().String()
}
