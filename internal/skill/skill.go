// Package skill provides the closed catalog of domain actions the
// orchestrator may dispatch.
//
// Each skill performs one conceptual unit of domain work. Skills are not
// idempotent: repeated identical dispatches create repeated side effects.
// The catalog is statically enumerated and validated at startup so the
// prompt contract and the dispatcher cannot drift.
package skill

import (
	"context"
	"encoding/json"
	"fmt"
)

// Skill is one named domain action with a fixed argument shape.
type Skill struct {
	name        string
	description string
	argsHint    string // argument shape shown to the model, e.g. {"name": string}

	// handler is the type-erased execution function.
	handler func(ctx context.Context, args map[string]any) (any, error)
}

// Name returns the action name.
func (s *Skill) Name() string { return s.name }

// Description returns the description the model uses to pick the action.
func (s *Skill) Description() string { return s.description }

// ArgsHint returns the argument shape rendered into the prompt catalog.
func (s *Skill) ArgsHint() string { return s.argsHint }

// New creates a skill with type-safe input handling.
//
// The argument bag arriving from the model is a map[string]any; it is
// JSON-round-tripped into In so handlers work with typed inputs. Type
// safety is guaranteed at compile time via the generic parameters, type
// erasure happens internally so the registry can store heterogeneous
// skills.
func New[In, Out any](name, description, argsHint string, fn func(context.Context, In) (Out, error)) *Skill {
	erased := func(ctx context.Context, args map[string]any) (any, error) {
		if args == nil {
			args = map[string]any{}
		}

		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}

		var input In
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}

		return fn(ctx, input)
	}

	return &Skill{
		name:        name,
		description: description,
		argsHint:    argsHint,
		handler:     erased,
	}
}
