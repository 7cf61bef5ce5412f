package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds one DoString or DoFile call.
const DefaultExecutionTimeout = 30 * time.Second

// State wraps gopher-lua with a sandbox and an execution deadline.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes Go
// callers; Lua code itself always runs on the calling goroutine.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	sandbox          *Sandbox

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline for each execution. Zero or less
// disables the deadline; the caller's context still applies.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	state := &State{executionTimeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})
	state.L = L

	openSafeLibraries(L)

	state.sandbox = NewSandbox(L)
	state.sandbox.Install()

	return state
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Not opened: io, os, debug, package, channel, coroutine
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, func() error {
		return s.L.DoString(code)
	})
}

// run executes fn with the deadline installed on the LState.
func (s *State) run(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.executionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.executionTimeout)
	}
	defer cancel()

	s.L.SetContext(runCtx)
	defer s.L.RemoveContext()

	err := s.doWithRecovery(fn)
	if err == nil {
		return nil
	}

	// The VM reports cancellation as a plain runtime error.
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%w after %v", ErrExecutionTimeout, s.executionTimeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return err
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// RegisterModule registers a global table with the given functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
}

// RegisterFunc registers a Go function as a global Lua function.
func (s *State) RegisterFunc(name string, fn lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.NewFunction(fn))
}

// Sandbox returns the sandbox for capability management.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
