package build

import "sync"

// Notices deduplicates deprecation warnings within one invocation.
type Notices struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewNotices returns an empty set.
func NewNotices() *Notices {
	return &Notices{seen: make(map[string]struct{})}
}

// Emit reports w through rep unless its option was already reported. It
// returns whether the warning was emitted.
func (n *Notices) Emit(rep Reporter, w DeprecatedOptionWarning) bool {
	n.mu.Lock()
	if _, ok := n.seen[w.Option]; ok {
		n.mu.Unlock()
		return false
	}
	n.seen[w.Option] = struct{}{}
	n.mu.Unlock()

	rep.Notice(w.Option, w.Message)
	return true
}

// Seen reports whether option has been reported.
func (n *Notices) Seen(option string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.seen[option]
	return ok
}
