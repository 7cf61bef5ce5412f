package script

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Capability is a permission a script host can grant.
type Capability string

// Available capabilities.
const (
	CapabilityFileWrite Capability = "filesystem.write"
	CapabilityNetwork   Capability = "network"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	mu           sync.RWMutex
	capabilities map[Capability]bool
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
	}
}

// Install removes globals that could load code from outside the script.
func (s *Sandbox) Install() {
	for _, name := range []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
		"require",
		"module",
	} {
		s.L.SetGlobal(name, lua.LNil)
	}
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities[c] = true
}

// Revoke disables a capability.
func (s *Sandbox) Revoke(c Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.capabilities, c)
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[c]
}
