package compiler

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// DefaultIgnore lists the globs, relative to the watch root, that never
// trigger a rebuild.
var DefaultIgnore = []string{
	"**/node_modules",
	"**/.git",
	"**/.DS_Store",
	"**/*.swp",
	"**/*~",
}

// WatchOptions configures the source watcher.
type WatchOptions struct {
	// Dirs are watched recursively.
	Dirs []string
	// Root is the directory ignore globs are relative to.
	Root string
	// Ignore globs use doublestar syntax. A path is ignored when it or any
	// of its parent directories matches.
	Ignore   []string
	Debounce time.Duration
}

type change struct {
	path string
	op   string
}

func changedPaths(changes []change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.path
	}
	return out
}

// watcher batches fsnotify events into debounced change sets.
type watcher struct {
	fsw     *fsnotify.Watcher
	opts    WatchOptions
	changes chan []change
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newWatcher(opts WatchOptions) (*watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fsw:     fsw,
		opts:    opts,
		changes: make(chan []change),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, dir := range opts.Dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	log.Debug().Strs("dirs", opts.Dirs).Int("watched", len(fsw.WatchList())).Msg("watcher initialized")
	return w, nil
}

func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether path, or any of its parents below the root,
// matches an ignore glob.
func (w *watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return false
	}

	segments := strings.Split(rel, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		for _, pattern := range w.opts.Ignore {
			if ok, _ := doublestar.Match(pattern, prefix); ok {
				return true
			}
		}
	}
	return false
}

func (w *watcher) start() {
	go w.run()
}

func (w *watcher) run() {
	defer close(w.doneCh)

	pending := make(map[string]string)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories are watched as they appear.
				_ = w.addTree(ev.Name)
			}
			pending[ev.Name] = ev.Op.String()
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			batch := make([]change, 0, len(pending))
			for path, op := range pending {
				batch = append(batch, change{path: path, op: op})
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].path < batch[j].path })
			pending = make(map[string]string)

			select {
			case w.changes <- batch:
			case <-w.stopCh:
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *watcher) stop() error {
	select {
	case <-w.stopCh:
		return nil
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	return w.fsw.Close()
}
