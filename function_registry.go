package dashprefs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from size rules.
type Function func(args ...any) (any, error)

// FunctionRegistry stores rule helpers keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// DefaultFunctions returns a registry holding the built-in helpers:
//
//	domain_of(id)           "light.kitchen" -> "light"
//	has_prefix(id, prefix)  strings.HasPrefix
func DefaultFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("domain_of", func(args ...any) (any, error) {
		id, err := stringArg("domain_of", args, 0)
		if err != nil {
			return nil, err
		}
		return DomainOf(id), nil
	})
	_ = registry.Register("has_prefix", func(args ...any) (any, error) {
		id, err := stringArg("has_prefix", args, 0)
		if err != nil {
			return nil, err
		}
		prefix, err := stringArg("has_prefix", args, 1)
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(id, prefix), nil
	})
	return registry
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("dashprefs: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("dashprefs: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("dashprefs: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("dashprefs: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("dashprefs: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringArg(fn string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("dashprefs: %s expects at least %d arguments", fn, i+1)
	}
	value, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("dashprefs: %s argument %d must be a string, got %T", fn, i, args[i])
	}
	return value, nil
}
