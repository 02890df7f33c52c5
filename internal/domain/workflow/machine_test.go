package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsDecisionTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePendingL1, false},
		{StatePendingL2, false},
		{StateRejected, true},
		{StatePOGenerated, true},
		{StateReceiptSubmitted, true},
		{StateValidated, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsDecisionTerminal(); got != tt.expected {
				t.Errorf("State.IsDecisionTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StatePendingL1, true},
		{"valid state", StateValidated, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateMachine_Fire(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePendingL1).
		Permit(TriggerReject, StateRejected)

	machine := b.Build(StatePendingL1)

	if !machine.CanFire(TriggerReject) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	if err := machine.Fire(context.Background(), TriggerReject); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.State() != StateRejected {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateRejected)
	}
}

func TestStateMachine_FireInvalidTransition(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePendingL1).
		Permit(TriggerApprove, StatePendingL2)

	machine := b.Build(StatePendingL1)

	err := machine.Fire(context.Background(), TriggerValidate)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if machine.State() != StatePendingL1 {
		t.Errorf("state changed on failed Fire(): %v", machine.State())
	}
}

func TestStateMachine_GuardFailed(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePendingL1).
		PermitIf(TriggerApprove, StatePendingL2, func(ctx context.Context) bool { return false })

	machine := b.Build(StatePendingL1)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
}

func TestBuildRequestMachine_SingleLevel(t *testing.T) {
	machine := BuildRequestMachine(StatePendingL1, 1)

	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire(APPROVE) failed: %v", err)
	}
	if machine.State() != StatePOGenerated {
		t.Errorf("state = %v, want %v", machine.State(), StatePOGenerated)
	}
}

func TestBuildRequestMachine_TwoLevels(t *testing.T) {
	machine := BuildRequestMachine(StatePendingL1, 2)

	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("first Fire(APPROVE) failed: %v", err)
	}
	if machine.State() != StatePendingL2 {
		t.Fatalf("state = %v, want %v", machine.State(), StatePendingL2)
	}

	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("second Fire(APPROVE) failed: %v", err)
	}
	if machine.State() != StatePOGenerated {
		t.Errorf("state = %v, want %v", machine.State(), StatePOGenerated)
	}
}

func TestBuildRequestMachine_RejectIsTerminal(t *testing.T) {
	machine := BuildRequestMachine(StatePendingL2, 2)

	if err := machine.Fire(context.Background(), TriggerReject); err != nil {
		t.Fatalf("Fire(REJECT) failed: %v", err)
	}
	if machine.State() != StateRejected {
		t.Fatalf("state = %v, want %v", machine.State(), StateRejected)
	}

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() after reject error = %v, want ErrInvalidTransition", err)
	}
}

func TestBuildRequestMachine_ReceiptFlow(t *testing.T) {
	machine := BuildRequestMachine(StatePOGenerated, 2)

	if err := machine.Fire(context.Background(), TriggerSubmitReceipt); err != nil {
		t.Fatalf("Fire(SUBMIT_RECEIPT) failed: %v", err)
	}
	if err := machine.Fire(context.Background(), TriggerValidate); err != nil {
		t.Fatalf("Fire(VALIDATE) failed: %v", err)
	}
	if machine.State() != StateValidated {
		t.Fatalf("state = %v, want %v", machine.State(), StateValidated)
	}

	// A corrected receipt can still be resubmitted after validation.
	if err := machine.Fire(context.Background(), TriggerSubmitReceipt); err != nil {
		t.Errorf("resubmission after VALIDATED failed: %v", err)
	}
}
