package policy

import (
	"strings"
)

// Action categories recognised by the evaluator.
const (
	CategoryPayment       = "payment"
	CategoryCommunication = "communication"
	CategoryDataAccess    = "data-access"
	CategorySystemChange  = "system-change"
)

// Level orders verdicts from loosest to strictest. Comparisons rely on the
// numeric order, so new levels must keep it monotonic.
type Level int

const (
	// AutoApprove lets the orchestrator proceed without a human gate.
	AutoApprove Level = iota
	// RequiresApproval parks the task in Pending_Approval until a decision
	// is written.
	RequiresApproval
	// HumanRequired also parks the task, flagging that no delegation rule
	// may ever clear it automatically.
	HumanRequired
)

func (l Level) String() string {
	switch l {
	case AutoApprove:
		return "auto-approve"
	case RequiresApproval:
		return "requires-approval"
	case HumanRequired:
		return "human-required"
	}
	return "unknown"
}

// Verdict is the evaluation result: the required involvement level and the
// rule that produced it.
type Verdict struct {
	Level  Level
	Reason string
}

// Action carries the attributes of a single proposed action. Amount is zero
// when monetary value does not apply.
type Action struct {
	Category     string
	Amount       float64
	Counterparty string
	NewContact   bool
	Legal        bool
	Irreversible bool
	Description  string
}

// Config is the immutable rule configuration, loaded once at startup.
// Thresholds are monetary bounds; contacts are matched case-insensitively,
// with a domain fallback for e-mail addresses.
type Config struct {
	LowThreshold  float64  `yaml:"lowThreshold" json:"lowThreshold"`
	HighThreshold float64  `yaml:"highThreshold" json:"highThreshold"`
	KnownContacts []string `yaml:"knownContacts" json:"knownContacts"`

	// SuspiciousTerms escalate payments whose description matches; defaults
	// cover the usual fraud vocabulary.
	SuspiciousTerms []string `yaml:"suspiciousTerms,omitempty" json:"suspiciousTerms,omitempty"`
}

// DefaultConfig mirrors the thresholds the system ships with.
func DefaultConfig() Config {
	return Config{
		LowThreshold:  50,
		HighThreshold: 100,
		SuspiciousTerms: []string{
			"urgent", "immediate", "wire transfer", "gift card", "bitcoin", "cash",
		},
	}
}

// Evaluator applies the decision table. It holds only immutable configuration
// and is safe for concurrent use.
type Evaluator struct {
	config Config
}

// New creates an evaluator from the supplied configuration. A zero
// HighThreshold would auto-escalate everything, so defaults fill the gaps.
func New(config Config) *Evaluator {
	if config.HighThreshold <= 0 {
		config.HighThreshold = DefaultConfig().HighThreshold
	}
	if config.LowThreshold <= 0 || config.LowThreshold > config.HighThreshold {
		config.LowThreshold = DefaultConfig().LowThreshold
	}
	if len(config.SuspiciousTerms) == 0 {
		config.SuspiciousTerms = DefaultConfig().SuspiciousTerms
	}
	return &Evaluator{config: config}
}

// Config returns a copy of the active configuration.
func (e *Evaluator) Config() Config {
	cfg := e.config
	cfg.KnownContacts = append([]string(nil), e.config.KnownContacts...)
	cfg.SuspiciousTerms = append([]string(nil), e.config.SuspiciousTerms...)
	return cfg
}

// Evaluate maps an action to a verdict. Identical inputs always yield the
// identical verdict; when several rules apply the strictest one wins.
func (e *Evaluator) Evaluate(action Action) Verdict {
	verdict := Verdict{Level: AutoApprove, Reason: "within auto-approval bounds"}

	raise := func(level Level, reason string) {
		if level > verdict.Level {
			verdict = Verdict{Level: level, Reason: reason}
		}
	}

	category := strings.ToLower(strings.TrimSpace(action.Category))
	switch category {
	case CategoryPayment, CategoryCommunication, CategoryDataAccess:
	case CategorySystemChange:
		raise(HumanRequired, "system changes always need a human")
	default:
		// Fail safe: an unknown category means the plan is malformed.
		raise(HumanRequired, "unrecognised action category")
	}

	if action.Amount < 0 {
		raise(HumanRequired, "negative amount")
	}
	if action.Amount > e.config.HighThreshold {
		raise(HumanRequired, "amount above high threshold")
	} else if action.Amount > e.config.LowThreshold {
		raise(RequiresApproval, "amount above low threshold")
	}

	if action.Legal {
		raise(HumanRequired, "action flagged legal")
	}
	if action.Irreversible {
		raise(HumanRequired, "action flagged irreversible")
	}

	if action.Counterparty == "" || !e.KnownContact(action.Counterparty) {
		raise(RequiresApproval, "counterparty not in known contacts")
	}
	if category == CategoryCommunication && action.NewContact {
		raise(RequiresApproval, "first communication with a new contact")
	}

	if category == CategoryPayment && action.Description != "" {
		if term, ok := e.suspicious(action.Description); ok {
			raise(RequiresApproval, "suspicious term in description: "+term)
		}
	}
	return verdict
}

// KnownContact reports whether the counterparty appears in the configured
// contact set, either exactly or by e-mail domain.
func (e *Evaluator) KnownContact(counterparty string) bool {
	normalized := strings.ToLower(strings.TrimSpace(counterparty))
	if normalized == "" {
		return false
	}
	for _, contact := range e.config.KnownContacts {
		if normalized == strings.ToLower(strings.TrimSpace(contact)) {
			return true
		}
	}
	if at := strings.LastIndex(normalized, "@"); at != -1 {
		domain := normalized[at+1:]
		for _, contact := range e.config.KnownContacts {
			contact = strings.ToLower(strings.TrimSpace(contact))
			if idx := strings.LastIndex(contact, "@"); idx != -1 && contact[idx+1:] == domain {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) suspicious(description string) (string, bool) {
	lowered := strings.ToLower(description)
	for _, term := range e.config.SuspiciousTerms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}
