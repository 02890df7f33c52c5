package workflow

import (
	"context"
	"fmt"
)

// StateMachine tracks the current lifecycle state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}

// GuardFunc evaluates whether a candidate transition should be taken
type GuardFunc func(ctx context.Context) bool

// transition is one candidate target for a trigger, with an optional guard
type transition struct {
	toState State
	guard   GuardFunc
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[Trigger][]transition
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger has at least one configured transition.
// Guards need a context to evaluate, so they are only consulted by Fire.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.transitions[m.currentState][trigger]) > 0
}

// Fire attempts to execute the trigger, taking the first transition whose
// guard passes
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.transitions[m.currentState][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

// PermittedTriggers returns all triggers configured for the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	configured := m.transitions[m.currentState]
	triggers := make([]Trigger, 0, len(configured))
	for trigger := range configured {
		triggers = append(triggers, trigger)
	}
	return triggers
}
