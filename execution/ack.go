package execution

import "github.com/marketstructure/execengine/domain"

// SubmittedOrder is one successfully-constructed-and-submitted order in an ExecutionAck.
type SubmittedOrder struct {
	DecisionID domain.DecisionId
	OrderID    domain.OrderId
}

// RejectedDecision is one Decision that never reached the broker.
type RejectedDecision struct {
	DecisionID domain.DecisionId
	Violation  domain.ConstraintViolation
}

// ExecutionAck is the Gateway's aggregate result for SubmitPlan.
type ExecutionAck struct {
	PlanID    domain.PlanId
	Submitted []SubmittedOrder
	Rejected  []RejectedDecision
	Error     string // set for plan-level failures, e.g. PLAN_NOT_APPROVED
}

const errPlanNotApproved = "PLAN_NOT_APPROVED"
