package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) wait(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.events) >= n {
			out := append([]Event(nil), r.events...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("received fewer than %d events", n)
	return nil
}

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		in     fsnotify.Op
		want   Operation
		wantOK bool
	}{
		{fsnotify.Write, OpWrite, true},
		{fsnotify.Create, OpCreate, true},
		{fsnotify.Create | fsnotify.Write, OpCreate, true},
		{fsnotify.Remove, OpRemove, true},
		{fsnotify.Rename, OpRename, true},
		{fsnotify.Chmod, 0, false},
	}

	for _, tt := range tests {
		got, ok := convertOp(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("convertOp(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)

	a := filepath.Join(dir, "a.toml")
	b := filepath.Join(dir, "b.toml")
	if err := w.Watch(a); err != nil {
		t.Fatalf("Watch(a) error = %v", err)
	}
	if err := w.Watch(b); err != nil {
		t.Fatalf("Watch(b) error = %v", err)
	}
	if err := w.Watch(a); err != nil {
		t.Fatalf("Watch(a) again error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 2 {
		t.Errorf("WatchedFiles() = %d, want 2", got)
	}

	if err := w.Unwatch(a); err != nil {
		t.Errorf("Unwatch(a) error = %v", err)
	}
	if err := w.Unwatch(b); err != nil {
		t.Errorf("Unwatch(b) error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 0 {
		t.Errorf("WatchedFiles() = %d, want 0", got)
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := newWatcher(t)
	if err := w.Watch(filepath.Join(t.TempDir(), "nope", "a.toml")); err == nil {
		t.Error("Watch(missing dir) error = nil")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := newWatcher(t)

	if w.IsRunning() {
		t.Error("IsRunning() = true before Start()")
	}
	w.Start()
	w.Start()
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
	if err := w.Watch(filepath.Join(t.TempDir(), "x.toml")); err != ErrWatcherClosed {
		t.Errorf("Watch() after Stop error = %v, want ErrWatcherClosed", err)
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.toml")
	if err := os.WriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := newWatcher(t, WithDebounce(30*time.Millisecond))
	w.OnChange(rec.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	// Unwatched siblings are filtered out.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("modified"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	events := rec.wait(t, 1)
	if events[0].Path != path {
		t.Errorf("event.Path = %q, want %q", events[0].Path, path)
	}

	// The burst coalesces into one event.
	time.Sleep(150 * time.Millisecond)
	rec.mu.Lock()
	n := len(rec.events)
	rec.mu.Unlock()
	if n != 1 {
		t.Errorf("received %d events, want 1", n)
	}
}

func TestWatcher_DetectsCreation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.yaml")

	rec := &recorder{}
	w := newWatcher(t, WithDebounce(0))
	w.OnChange(rec.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	if err := os.WriteFile(path, []byte("a: 1"), 0644); err != nil {
		t.Fatal(err)
	}

	events := rec.wait(t, 1)
	if events[0].Op != OpCreate {
		t.Errorf("event.Op = %v, want create", events[0].Op)
	}
}

func TestWatcher_HandlerPanicRecovered(t *testing.T) {
	rec := &recorder{}
	w := newWatcher(t)
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(rec.handle)

	w.emit(Event{Path: "/x", Op: OpWrite})
	if got := rec.wait(t, 1); got[0].Path != "/x" {
		t.Errorf("event = %+v", got[0])
	}
}

func TestQueueCoalesces(t *testing.T) {
	w := newWatcher(t, WithDebounce(time.Hour))

	w.queue(Event{Path: "/a", Op: OpCreate})
	w.queue(Event{Path: "/a", Op: OpWrite})
	w.queue(Event{Path: "/b", Op: OpRemove})
	w.queue(Event{Path: "/b", Op: OpCreate})

	w.mu.Lock()
	defer w.mu.Unlock()
	if got := w.pending["/a"].event.Op; got != OpCreate {
		t.Errorf("/a op = %v, want create", got)
	}
	if got := w.pending["/b"].event.Op; got != OpCreate {
		t.Errorf("/b op = %v, want create", got)
	}
}
