package skill

import (
	"context"
	"fmt"
	"strings"
)

// Registry maps action names to skills and performs dispatch.
//
// The registry is populated once at startup and read-only afterwards, so
// it is safe for concurrent dispatch without locking.
type Registry struct {
	skills map[string]*Skill
	names  []string // registration order, used for catalog rendering
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]*Skill)}
}

// Register adds a skill. Duplicate names and incomplete skills fail so
// catalog drift is caught at startup, not at call time.
func (r *Registry) Register(sk *Skill) error {
	if sk == nil || sk.name == "" {
		return fmt.Errorf("skill name is required")
	}
	if sk.description == "" {
		return fmt.Errorf("skill %q: description is required", sk.name)
	}
	if sk.handler == nil {
		return fmt.Errorf("skill %q: handler is required", sk.name)
	}
	if _, exists := r.skills[sk.name]; exists {
		return fmt.Errorf("skill %q: already registered", sk.name)
	}
	r.skills[sk.name] = sk
	r.names = append(r.names, sk.name)
	return nil
}

// Names returns action names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Dispatch routes an action name plus argument bag to its handler.
// An action outside the catalog fails with ErrUnknownAction; the error
// text propagates verbatim to the user.
func (r *Registry) Dispatch(ctx context.Context, action string, args map[string]any) (any, error) {
	sk, ok := r.skills[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return sk.handler(ctx, args)
}

// Catalog renders the action list for the model prompt: one line per
// action with its description and argument shape. Kept in lockstep with
// dispatch by construction, both read the same registry.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, name := range r.names {
		sk := r.skills[name]
		b.WriteString("- ")
		b.WriteString(sk.name)
		b.WriteString(": ")
		b.WriteString(sk.description)
		if sk.argsHint != "" {
			b.WriteString(" args: ")
			b.WriteString(sk.argsHint)
		}
		b.WriteString("\n")
	}
	return b.String()
}
