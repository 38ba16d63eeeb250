// Package browser opens URLs in the user's default browser.
package browser

import (
	"io"
	"sync"

	"github.com/pkg/browser"
)

var silence sync.Once

// Launcher opens URLs with the system handler.
type Launcher struct {
	open func(url string) error
}

// New returns a launcher backed by the system URL handler. The output of
// launched processes is discarded.
func New() *Launcher {
	silence.Do(func() {
		browser.Stdout, browser.Stderr = io.Discard, io.Discard
	})
	return &Launcher{open: browser.OpenURL}
}

// Open opens url. Failures are returned but never fatal to callers that
// treat opening as best effort. Open is safe for concurrent use.
func (l *Launcher) Open(url string) error {
	if l.open == nil {
		return New().Open(url)
	}
	return l.open(url)
}
