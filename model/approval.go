package model

import (
	"fmt"
	"time"
)

// RiskCategory classifies what an approval request puts at stake.
type RiskCategory string

const (
	RiskFinancial     RiskCategory = "financial"
	RiskCommunication RiskCategory = "communication"
	RiskData          RiskCategory = "data"
	RiskOther         RiskCategory = "other"
)

// Decision is the human verdict on an approval request. Every value except
// Deferred is terminal; Deferred re-arms the request with a new deadline.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionModified Decision = "modified"
	DecisionRejected Decision = "rejected"
	DecisionDeferred Decision = "deferred"
)

// ApprovalRequest gates a task whose plan contains actions the policy
// evaluator refused to auto-approve. At most one active request exists per
// task.
type ApprovalRequest struct {
	ID             string       `yaml:"id" json:"id"`
	RiskCategory   RiskCategory `yaml:"riskCategory" json:"riskCategory"`
	EstimatedValue float64      `yaml:"estimatedValue,omitempty" json:"estimatedValue,omitempty"`
	Justification  string       `yaml:"justification" json:"justification"`
	Deadline       time.Time    `yaml:"deadline" json:"deadline"`
	Decision       Decision     `yaml:"decision" json:"decision"`
	DecidedAt      *time.Time   `yaml:"decidedAt,omitempty" json:"decidedAt,omitempty"`

	// Urgent is set when the deadline passes without a decision. The request
	// stays pending; the flag only drives human-visible escalation.
	Urgent bool `yaml:"urgent,omitempty" json:"urgent,omitempty"`
}

// Active reports whether the request still awaits a decision.
func (r *ApprovalRequest) Active() bool {
	return r != nil && r.Decision == DecisionPending
}

// Decided reports whether a terminal decision was recorded.
func (r *ApprovalRequest) Decided() bool {
	if r == nil {
		return false
	}
	switch r.Decision {
	case DecisionApproved, DecisionModified, DecisionRejected:
		return true
	}
	return false
}

// Defer re-arms the request: the decision reverts to pending and the deadline
// moves to newDeadline, which must be strictly later than the current one.
func (r *ApprovalRequest) Defer(newDeadline time.Time) error {
	if !newDeadline.After(r.Deadline) {
		return fmt.Errorf("deferred deadline %v is not after current deadline %v", newDeadline, r.Deadline)
	}
	r.Decision = DecisionPending
	r.DecidedAt = nil
	r.Deadline = newDeadline
	r.Urgent = false
	return nil
}
