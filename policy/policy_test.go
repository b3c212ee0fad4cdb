package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEvaluator() *Evaluator {
	return New(Config{
		LowThreshold:  50,
		HighThreshold: 100,
		KnownContacts: []string{"vendor@known.example.com", "admin@partner.example.org"},
	})
}

func TestEvaluateDecisionTable(t *testing.T) {
	evaluator := newTestEvaluator()

	testCases := []struct {
		name   string
		action Action
		expect Level
	}{
		{
			name:   "small payment to known contact",
			action: Action{Category: CategoryPayment, Amount: 30, Counterparty: "vendor@known.example.com"},
			expect: AutoApprove,
		},
		{
			name:   "mid payment to known contact",
			action: Action{Category: CategoryPayment, Amount: 75, Counterparty: "vendor@known.example.com"},
			expect: RequiresApproval,
		},
		{
			name:   "payment above high threshold",
			action: Action{Category: CategoryPayment, Amount: 120, Counterparty: "vendor@known.example.com"},
			expect: HumanRequired,
		},
		{
			name:   "small payment to unknown counterparty",
			action: Action{Category: CategoryPayment, Amount: 10, Counterparty: "stranger@nowhere.example"},
			expect: RequiresApproval,
		},
		{
			name:   "communication to new contact",
			action: Action{Category: CategoryCommunication, Counterparty: "vendor@known.example.com", NewContact: true},
			expect: RequiresApproval,
		},
		{
			name:   "communication to known contact",
			action: Action{Category: CategoryCommunication, Counterparty: "vendor@known.example.com"},
			expect: AutoApprove,
		},
		{
			name:   "legal flag overrides small amount",
			action: Action{Category: CategoryDataAccess, Amount: 1, Counterparty: "vendor@known.example.com", Legal: true},
			expect: HumanRequired,
		},
		{
			name:   "irreversible flag overrides",
			action: Action{Category: CategoryCommunication, Counterparty: "vendor@known.example.com", Irreversible: true},
			expect: HumanRequired,
		},
		{
			name:   "system change always human",
			action: Action{Category: CategorySystemChange, Counterparty: "vendor@known.example.com"},
			expect: HumanRequired,
		},
		{
			name:   "unknown category fails safe",
			action: Action{Category: "mystery", Counterparty: "vendor@known.example.com"},
			expect: HumanRequired,
		},
		{
			name:   "missing counterparty",
			action: Action{Category: CategoryPayment, Amount: 5},
			expect: RequiresApproval,
		},
		{
			name:   "suspicious term escalates",
			action: Action{Category: CategoryPayment, Amount: 20, Counterparty: "vendor@known.example.com", Description: "gift card refill"},
			expect: RequiresApproval,
		},
		{
			name:   "domain match counts as known",
			action: Action{Category: CategoryPayment, Amount: 20, Counterparty: "billing@known.example.com"},
			expect: AutoApprove,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := evaluator.Evaluate(tc.action)
			assert.Equal(t, tc.expect, verdict.Level, "reason: %s", verdict.Reason)
			assert.NotEmpty(t, verdict.Reason)
		})
	}
}

// Crossing a threshold upward must never loosen the verdict.
func TestEvaluateMonotonicOverAmount(t *testing.T) {
	evaluator := newTestEvaluator()
	action := Action{Category: CategoryPayment, Counterparty: "vendor@known.example.com"}

	previous := AutoApprove
	for amount := 0.0; amount <= 250; amount += 5 {
		action.Amount = amount
		verdict := evaluator.Evaluate(action)
		assert.GreaterOrEqual(t, int(verdict.Level), int(previous),
			"verdict loosened at amount %.0f", amount)
		previous = verdict.Level
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	evaluator := newTestEvaluator()
	action := Action{Category: CategoryPayment, Amount: 80, Counterparty: "x@y.example", Description: "urgent wire transfer"}
	first := evaluator.Evaluate(action)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, evaluator.Evaluate(action))
	}
}

func TestNewFillsDefaults(t *testing.T) {
	evaluator := New(Config{})
	cfg := evaluator.Config()
	assert.Equal(t, DefaultConfig().LowThreshold, cfg.LowThreshold)
	assert.Equal(t, DefaultConfig().HighThreshold, cfg.HighThreshold)
	assert.NotEmpty(t, cfg.SuspiciousTerms)
}

func TestKnownContact(t *testing.T) {
	evaluator := newTestEvaluator()
	assert.True(t, evaluator.KnownContact("VENDOR@known.example.com"))
	assert.True(t, evaluator.KnownContact("other@partner.example.org"), "domain match")
	assert.False(t, evaluator.KnownContact("someone@elsewhere.example"))
	assert.False(t, evaluator.KnownContact(""))
}
