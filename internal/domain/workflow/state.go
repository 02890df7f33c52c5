package workflow

// State represents a stage in the purchase request lifecycle
type State string

const (
	StatePendingL1        State = "PENDING_L1"
	StatePendingL2        State = "PENDING_L2"
	StateRejected         State = "REJECTED"
	StatePOGenerated      State = "PO_GENERATED"
	StateReceiptSubmitted State = "RECEIPT_SUBMITTED"
	StateValidated        State = "VALIDATED"
)

var validStates = map[State]bool{
	StatePendingL1:        true,
	StatePendingL2:        true,
	StateRejected:         true,
	StatePOGenerated:      true,
	StateReceiptSubmitted: true,
	StateValidated:        true,
}

// States from which no further approval decision is accepted. PO_GENERATED and
// its downstream states still accept receipt submissions, which move through
// the reconciliation triggers rather than Decide.
var decisionTerminalStates = map[State]bool{
	StateRejected:         true,
	StatePOGenerated:      true,
	StateReceiptSubmitted: true,
	StateValidated:        true,
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// IsDecisionTerminal returns true if the state admits no further Decide calls
func (s State) IsDecisionTerminal() bool {
	return decisionTerminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
