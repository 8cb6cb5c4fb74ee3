// Package toolregistry resolves a named, allow-listed set of callable tools
// for record/live modes. Each handler is a pure function from a JSON object
// (args) to a JSON object (result); it may return an error, in which case the
// error message is captured as the tool error. Grounded on the teacher's
// runtime/toolregistry/executor package for the registry/handler vocabulary,
// trimmed from its Pulse-stream/OTel-traced remote-call shape down to a plain
// in-process function map, since this harness's tools run synchronously on
// the case-engine's main path rather than being routed to a remote toolset.
package toolregistry

import (
	"fmt"
	"sort"
)

// Handler is a pure function implementing one tool: it receives decoded JSON
// args and returns a decoded JSON result, or an error.
type Handler func(args map[string]any) (map[string]any, error)

// Module is a named set of tool handlers. The built-in module and an optional
// user-supplied module are both Modules; Resolve overlays the user module
// on top of the built-in one.
type Module map[string]Handler

// Error reports that one or more allow-listed tool names have no
// implementation in any resolved module.
type Error struct {
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool_registry_error: no handler registered for tool(s): %v", e.Missing)
}

// Registry is the resolved, immutable-after-construction set of handlers
// available to one suite run.
type Registry struct {
	handlers map[string]Handler
}

// Resolve returns exactly the subset of allowed tool names that have a
// handler in module or overlay (overlay wins on name collision). Any name in
// allowed with no implementation in either fails with *Error enumerating the
// missing names.
func Resolve(allowed map[string]struct{}, module Module, overlay Module) (*Registry, error) {
	merged := make(map[string]Handler, len(module)+len(overlay))
	for name, h := range module {
		merged[name] = h
	}
	for name, h := range overlay {
		merged[name] = h
	}

	handlers := make(map[string]Handler, len(allowed))
	var missing []string
	for name := range allowed {
		h, ok := merged[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		handlers[name] = h
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &Error{Missing: missing}
	}
	return &Registry{handlers: handlers}, nil
}

// Invoke runs the resolved handler for name. Callers must have already
// checked name against the suite's allow-list (tool_not_allowed is a
// case-engine concern, not a registry concern) — Invoke on an unresolved name
// returns tool_not_registered, the runtime-only sibling of the resolve-time
// tool_registry_error.
var ErrNotRegistered = fmt.Errorf("tool_not_registered")

// Invoke runs the resolved handler for name with args, returning its result
// or the captured error message on failure.
func (r *Registry) Invoke(name string, args map[string]any) (result map[string]any, callErr error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			callErr = fmt.Errorf("tool %q panicked: %v", name, rec)
		}
	}()
	return h(args)
}

// Names returns the sorted list of tool names this registry can invoke.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
