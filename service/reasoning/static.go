package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
)

var amountPattern = regexp.MustCompile(`\$\s?([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)

var paymentTerms = []string{"invoice", "payment", "pay ", "bill", "amount due", "remittance"}

// Static is a deterministic rule-based engine: it scans the task content for
// monetary amounts and intent keywords and proposes matching actions. It never
// fails, which makes it the default engine for local runs and tests.
type Static struct{}

var _ Engine = (*Static)(nil)

// NewStatic creates a rule-based engine.
func NewStatic() *Static { return &Static{} }

// Plan inspects the task and proposes actions.
func (e *Static) Plan(_ context.Context, task *model.Task) (*model.Plan, error) {
	content := strings.ToLower(task.Title + "\n" + task.Content)
	plan := &model.Plan{CreatedAt: clock.Now(), Confidence: 0.9}

	amount, hasAmount := firstAmount(task.Title + "\n" + task.Content)
	counterparty := counterpartyOf(task)

	switch {
	case hasAmount && mentionsAny(content, paymentTerms):
		plan.Actions = append(plan.Actions, model.ProposedAction{
			Category:     "payment",
			Description:  fmt.Sprintf("Pay $%.2f to %s", amount, orUnknown(counterparty)),
			Amount:       amount,
			Counterparty: counterparty,
		})
		plan.Rationale = "Content names an amount due and a payment intent."
	case task.Kind == model.KindEmail:
		plan.Actions = append(plan.Actions, model.ProposedAction{
			Category:     "communication",
			Description:  "Reply to " + orUnknown(counterparty),
			Counterparty: counterparty,
		})
		plan.Draft = replyDraft(task)
		plan.Rationale = "Incoming message with no payment intent; draft a reply."
	case task.Kind == model.KindFile:
		plan.Actions = append(plan.Actions, model.ProposedAction{
			Category:    "data-access",
			Description: "File the document under the appropriate records folder",
		})
		plan.Rationale = "Dropped file with no actionable intent; archive it."
		plan.Confidence = 0.7
	default:
		plan.Rationale = "No recognisable intent in the task content."
		plan.Confidence = 0.3
	}
	return plan, nil
}

func firstAmount(text string) (float64, bool) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func counterpartyOf(task *model.Task) string {
	if task.Payload.Email != nil {
		return task.Payload.Email.From
	}
	return ""
}

func mentionsAny(content string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "the counterparty"
	}
	return s
}

func replyDraft(task *model.Task) string {
	subject := ""
	if task.Payload.Email != nil {
		subject = task.Payload.Email.Subject
	}
	return fmt.Sprintf("Hi,\n\nThanks for reaching out about %q. We have received your message and will follow up shortly.\n\nBest regards", subject)
}
