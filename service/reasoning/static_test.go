package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/model"
)

func emailTask(from, subject, body string) *model.Task {
	task := model.New("mailbox", "fp", model.KindEmail, time.Now())
	task.Title = "Email: " + subject
	task.Content = body
	task.Payload = model.Payload{Email: &model.EmailPayload{From: from, Subject: subject}}
	return task
}

func TestPlanInvoiceProposesPayment(t *testing.T) {
	task := emailTask("billing@acme.example", "Invoice INV-42", "Payment of $120.00 is due by Friday.")

	plan, err := NewStatic().Plan(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	action := plan.Actions[0]
	assert.Equal(t, "payment", action.Category)
	assert.Equal(t, 120.0, action.Amount)
	assert.Equal(t, "billing@acme.example", action.Counterparty)
	assert.GreaterOrEqual(t, plan.Confidence, LowConfidence)
}

func TestPlanParsesThousandsSeparator(t *testing.T) {
	task := emailTask("v@x.y", "Invoice", "invoice total $1,250.50")
	plan, err := NewStatic().Plan(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, 1250.50, plan.Actions[0].Amount)
}

func TestPlanEmailWithoutAmountDraftsReply(t *testing.T) {
	task := emailTask("client@partner.example", "Meeting next week?", "Can we talk on Tuesday?")

	plan, err := NewStatic().Plan(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "communication", plan.Actions[0].Category)
	assert.NotEmpty(t, plan.Draft)
	assert.Contains(t, plan.Draft, "Meeting next week?")
}

func TestPlanFileProposesFiling(t *testing.T) {
	task := model.New("dropzone", "fp", model.KindFile, time.Now())
	task.Title = "Process File: report.pdf"
	task.Content = "## File Details"

	plan, err := NewStatic().Plan(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "data-access", plan.Actions[0].Category)
}

func TestPlanUnrecognisedContentIsLowConfidence(t *testing.T) {
	task := model.New("manual", "fp", model.KindManual, time.Now())
	task.Content = "???"

	plan, err := NewStatic().Plan(context.Background(), task)
	require.NoError(t, err)
	assert.Empty(t, plan.Actions)
	assert.Less(t, plan.Confidence, LowConfidence)
}

func TestPlanIsDeterministic(t *testing.T) {
	task := emailTask("billing@acme.example", "Invoice", "pay $30")
	engine := NewStatic()
	first, err := engine.Plan(context.Background(), task)
	require.NoError(t, err)
	second, err := engine.Plan(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, first.Actions, second.Actions)
}
