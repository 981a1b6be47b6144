package engine

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Env is a variable frame with a parent chain.
type Env struct {
	ID     string
	Name   string
	Parent *Env

	vars  map[string]*Value
	order []string
	// locked bindings refuse assignment.
	locked map[string]bool
}

// NewEnv creates an empty environment enclosed by parent.
func NewEnv(parent *Env) *Env {
	return &Env{
		ID:     uuid.NewString(),
		Parent: parent,
		vars:   make(map[string]*Value),
	}
}

// Get looks up name in this frame only.
func (e *Env) Get(name string) (*Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Lookup searches the frame chain.
func (e *Env) Lookup(name string) (*Value, *Env) {
	for env := e; env != nil; env = env.Parent {
		if v, ok := env.vars[name]; ok {
			return v, env
		}
	}
	return nil, nil
}

// Set binds name in this frame.
func (e *Env) Set(name string, v *Value) {
	if _, ok := e.vars[name]; !ok {
		e.order = append(e.order, name)
	}
	e.vars[name] = v
}

// Remove unbinds name in this frame.
func (e *Env) Remove(name string) bool {
	if _, ok := e.vars[name]; !ok {
		return false
	}
	delete(e.vars, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// Lock marks a binding read-only.
func (e *Env) Lock(name string) {
	if e.locked == nil {
		e.locked = make(map[string]bool)
	}
	e.locked[name] = true
}

// IsLocked reports whether the binding is read-only.
func (e *Env) IsLocked(name string) bool { return e.locked[name] }

// Len returns the number of bindings in this frame.
func (e *Env) Len() int { return len(e.order) }

// Names returns binding names. Hidden names (leading dot) are included only
// when all is set; the result is sorted when sorted is set.
func (e *Env) Names(all, sorted bool) []string {
	names := make([]string, 0, len(e.order))
	for _, n := range e.order {
		if !all && strings.HasPrefix(n, ".") {
			continue
		}
		names = append(names, n)
	}
	if sorted {
		sort.Strings(names)
	}
	return names
}

// Label is the printed name of the environment.
func (e *Env) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return "<environment: " + e.ID[:8] + ">"
}
