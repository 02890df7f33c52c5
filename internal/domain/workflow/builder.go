package workflow

import "fmt"

// Builder assembles the transition table for a state machine
type Builder struct {
	transitions map[State]map[Trigger][]transition
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{
		transitions: make(map[State]map[Trigger][]transition),
	}
}

// StateConfig configures transitions out of a single state
type StateConfig struct {
	builder   *Builder
	fromState State
}

// Configure returns a configuration handle for the given state
func (b *Builder) Configure(state State) *StateConfig {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.transitions[state]; !ok {
		b.transitions[state] = make(map[Trigger][]transition)
	}
	return &StateConfig{builder: b, fromState: state}
}

// Build creates a state machine positioned at the given initial state. The
// transition table is copied so later builder mutations cannot leak in.
func (b *Builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	table := make(map[State]map[Trigger][]transition, len(b.transitions))
	for state, byTrigger := range b.transitions {
		copied := make(map[Trigger][]transition, len(byTrigger))
		for trigger, candidates := range byTrigger {
			copied[trigger] = append([]transition(nil), candidates...)
		}
		table[state] = copied
	}

	return &stateMachine{
		currentState: initialState,
		transitions:  table,
	}
}

// Permit allows a trigger to transition to the target state
func (c *StateConfig) Permit(trigger Trigger, toState State) *StateConfig {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target state when the guard
// passes
func (c *StateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateConfig {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.builder.transitions[c.fromState][trigger] = append(
		c.builder.transitions[c.fromState][trigger],
		transition{toState: toState, guard: guard},
	)
	return c
}
