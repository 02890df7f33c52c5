package workflow

import "context"

// BuildRequestMachine wires the purchase request lifecycle:
//
//	PENDING_L1 --APPROVE(required=1)--> PO_GENERATED
//	PENDING_L1 --APPROVE(required=2)--> PENDING_L2
//	PENDING_L1 --REJECT--> REJECTED
//	PENDING_L2 --APPROVE--> PO_GENERATED
//	PENDING_L2 --REJECT--> REJECTED
//	PO_GENERATED --SUBMIT_RECEIPT--> RECEIPT_SUBMITTED --VALIDATE--> VALIDATED
//
// VALIDATED and RECEIPT_SUBMITTED accept further receipt submissions so a
// corrected receipt can be re-validated.
func BuildRequestMachine(initial State, requiredLevels int) StateMachine {
	singleLevel := func(ctx context.Context) bool { return requiredLevels <= 1 }
	multiLevel := func(ctx context.Context) bool { return requiredLevels > 1 }

	b := NewBuilder()

	b.Configure(StatePendingL1).
		PermitIf(TriggerApprove, StatePOGenerated, singleLevel).
		PermitIf(TriggerApprove, StatePendingL2, multiLevel).
		Permit(TriggerReject, StateRejected)

	b.Configure(StatePendingL2).
		Permit(TriggerApprove, StatePOGenerated).
		Permit(TriggerReject, StateRejected)

	b.Configure(StatePOGenerated).
		Permit(TriggerSubmitReceipt, StateReceiptSubmitted)

	b.Configure(StateReceiptSubmitted).
		Permit(TriggerSubmitReceipt, StateReceiptSubmitted).
		Permit(TriggerValidate, StateValidated)

	b.Configure(StateValidated).
		Permit(TriggerSubmitReceipt, StateReceiptSubmitted)

	return b.Build(initial)
}
