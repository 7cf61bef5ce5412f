// Package watcher reports changes to configuration files.
//
// The watcher subscribes to each file's parent directory with fsnotify, so
// editors that save by renaming a temporary file over the original are
// still seen. Bursts of events for one file are coalesced into a single
// callback after a quiet period.
package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when using a stopped watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the last raw event of the burst arrived.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// ErrorHandler receives errors from the underlying watcher.
type ErrorHandler func(err error)

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.RWMutex

	fsw *fsnotify.Watcher

	// files maps watched file paths to their directory.
	files map[string]string
	// dirs counts watched files per directory.
	dirs map[string]int

	handlers []Handler
	onError  ErrorHandler

	debounce time.Duration
	pending  map[string]*pending

	running bool
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// pending is a debounced event waiting for its timer.
type pending struct {
	event Event
	timer *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported. Zero
// reports every raw event.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets the callback for watcher errors.
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *Watcher) {
		w.onError = h
	}
}

// New creates a new file watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]string),
		dirs:     make(map[string]int),
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*pending),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds a file to the watch list. The file need not exist yet, but
// its directory must.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[absPath]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[absPath] = dir
	return nil
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir, ok := w.files[absPath]
	if !ok {
		return nil
	}
	delete(w.files, absPath)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if !w.closed {
			return w.fsw.Remove(dir)
		}
	}
	return nil
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.closed {
		return
	}
	w.running = true

	w.wg.Add(1)
	go w.loop()
}

// Stop stops watching and releases the fsnotify watcher. A stopped
// watcher cannot be restarted.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.running = false
	close(w.done)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedFiles returns the list of watched files.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	return files
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.mu.RLock()
			h := w.onError
			w.mu.RUnlock()
			if h != nil {
				h(err)
			}
		}
	}
}

// handle filters a raw event down to watched files.
func (w *Watcher) handle(ev fsnotify.Event) {
	op, ok := convertOp(ev.Op)
	if !ok {
		return
	}
	path := filepath.Clean(ev.Name)

	w.mu.RLock()
	_, watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	event := Event{Path: path, Op: op, Time: time.Now()}
	if w.debounce == 0 {
		w.emit(event)
		return
	}
	w.queue(event)
}

// convertOp maps an fsnotify op to an Operation. Chmod is dropped.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	}
	return 0, false
}

// queue coalesces events for one path:
// create then write stays create, and a later create replaces a remove
// (an atomic save).
func (w *Watcher) queue(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	p, ok := w.pending[event.Path]
	if !ok {
		p = &pending{event: event}
		w.pending[event.Path] = p
		p.timer = time.AfterFunc(w.debounce, func() { w.fire(event.Path) })
		return
	}

	if !(event.Op == OpWrite && p.event.Op == OpCreate) {
		p.event.Op = event.Op
	}
	p.event.Time = event.Time
	p.timer.Reset(w.debounce)
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	closed := w.closed
	w.mu.Unlock()

	if ok && !closed {
		w.emit(p.event)
	}
}

// emit calls all handlers with the event.
// A panicking handler does not stop the others.
func (w *Watcher) emit(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		safeCall(handler, event)
	}
}

func safeCall(handler Handler, event Event) {
	defer func() {
		_ = recover()
	}()
	handler(event)
}
