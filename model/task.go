package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the payload shape of a task.
type Kind string

const (
	KindFile   Kind = "file"
	KindEmail  Kind = "email"
	KindManual Kind = "manual"
)

// Priority determines how prominently a task is surfaced; it does not affect
// scheduling order across tasks.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Bucket is a named state in the task state machine. Each bucket is backed by
// a directory of the same name in the vault.
type Bucket string

const (
	BucketNeedsAction     Bucket = "Needs_Action"
	BucketInProgress      Bucket = "In_Progress"
	BucketPlans           Bucket = "Plans"
	BucketPendingApproval Bucket = "Pending_Approval"
	BucketApproved        Bucket = "Approved"
	BucketDone            Bucket = "Done"
	BucketRejected        Bucket = "Rejected"
	BucketError           Bucket = "Error"
)

// Buckets lists every bucket in traversal order. The store creates one
// directory per entry at startup.
func Buckets() []Bucket {
	return []Bucket{
		BucketNeedsAction,
		BucketInProgress,
		BucketPlans,
		BucketPendingApproval,
		BucketApproved,
		BucketDone,
		BucketRejected,
		BucketError,
	}
}

// transitions holds the allowed bucket moves. In_Progress appears twice in
// the lifecycle: once while the reasoning engine drafts a plan and once while
// an approved action executes.
var transitions = map[Bucket][]Bucket{
	BucketNeedsAction:     {BucketInProgress, BucketError},
	BucketInProgress:      {BucketPlans, BucketDone, BucketError},
	BucketPlans:           {BucketPendingApproval, BucketApproved, BucketRejected, BucketError},
	BucketPendingApproval: {BucketApproved, BucketRejected, BucketError},
	BucketApproved:        {BucketInProgress, BucketError},
}

// Terminal reports whether the bucket accepts no further transitions.
func (b Bucket) Terminal() bool {
	return b == BucketDone || b == BucketRejected || b == BucketError
}

// CanTransition reports whether a move from b to dst is legal.
func (b Bucket) CanTransition(dst Bucket) bool {
	for _, allowed := range transitions[b] {
		if allowed == dst {
			return true
		}
	}
	return false
}

// StateChange is a single entry in a task's append-only history.
type StateChange struct {
	Bucket Bucket    `yaml:"bucket" json:"bucket"`
	At     time.Time `yaml:"at" json:"at"`
}

// FilePayload describes a task created from a file dropped into the dropzone.
type FilePayload struct {
	Path     string `yaml:"path" json:"path"`
	Size     int64  `yaml:"size" json:"size"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Ext      string `yaml:"ext,omitempty" json:"ext,omitempty"`
}

// EmailPayload describes a task created from an incoming message.
type EmailPayload struct {
	MessageID string `yaml:"messageId" json:"messageId"`
	From      string `yaml:"from" json:"from"`
	Subject   string `yaml:"subject" json:"subject"`
	Snippet   string `yaml:"snippet,omitempty" json:"snippet,omitempty"`
}

// Payload is a tagged variant; exactly the member matching Task.Kind is set.
type Payload struct {
	File  *FilePayload  `yaml:"file,omitempty" json:"file,omitempty"`
	Email *EmailPayload `yaml:"email,omitempty" json:"email,omitempty"`
}

// ProposedAction is a single side-effecting step suggested by the reasoning
// engine. Amount defaults to zero when monetary value is inapplicable.
type ProposedAction struct {
	Category     string  `yaml:"category" json:"category"` // payment | communication | data-access | system-change
	Description  string  `yaml:"description,omitempty" json:"description,omitempty"`
	Amount       float64 `yaml:"amount,omitempty" json:"amount,omitempty"`
	Counterparty string  `yaml:"counterparty,omitempty" json:"counterparty,omitempty"`
	NewContact   bool    `yaml:"newContact,omitempty" json:"newContact,omitempty"`
	Legal        bool    `yaml:"legal,omitempty" json:"legal,omitempty"`
	Irreversible bool    `yaml:"irreversible,omitempty" json:"irreversible,omitempty"`
}

// Plan is the reasoning engine's structured response for a task.
type Plan struct {
	Actions    []ProposedAction `yaml:"actions" json:"actions"`
	Draft      string           `yaml:"draft,omitempty" json:"draft,omitempty"`
	Rationale  string           `yaml:"rationale,omitempty" json:"rationale,omitempty"`
	Confidence float64          `yaml:"confidence" json:"confidence"`
	CreatedAt  time.Time        `yaml:"createdAt" json:"createdAt"`
}

// ExecutionResult records the outcome reported by an execution collaborator.
type ExecutionResult struct {
	Success    bool      `yaml:"success" json:"success"`
	ExternalID string    `yaml:"externalId,omitempty" json:"externalId,omitempty"`
	Message    string    `yaml:"message,omitempty" json:"message,omitempty"`
	At         time.Time `yaml:"at" json:"at"`
}

// Task is the unit of work. Identity never changes after creation; the bucket
// changes only through the store's Transition and history is append-only.
type Task struct {
	ID          string        `yaml:"id" json:"id"`
	Source      string        `yaml:"source" json:"source"`
	Fingerprint string        `yaml:"fingerprint" json:"fingerprint"`
	Kind        Kind          `yaml:"kind" json:"kind"`
	Priority    Priority      `yaml:"priority" json:"priority"`
	Title       string        `yaml:"title" json:"title"`
	CreatedAt   time.Time     `yaml:"created" json:"created"`
	Bucket      Bucket        `yaml:"state" json:"state"`
	History     []StateChange `yaml:"stateHistory" json:"stateHistory"`
	Payload     Payload       `yaml:"payload" json:"payload"`

	Plan     *Plan            `yaml:"plan,omitempty" json:"plan,omitempty"`
	Approval *ApprovalRequest `yaml:"approval,omitempty" json:"approval,omitempty"`
	Results  []ExecutionResult `yaml:"results,omitempty" json:"results,omitempty"`

	// Notes carries plain-language annotations, e.g. the explanation and the
	// recommended next step when a task is parked in Error.
	Notes []string `yaml:"notes,omitempty" json:"notes,omitempty"`

	// Content is the free-form markdown body of the task document. It is not
	// part of the frontmatter; the document codec carries it separately.
	Content string `yaml:"-" json:"-"`
}

// DeriveID builds the stable task identifier from the originating source and
// the source item's fingerprint. Re-ingesting the same item always yields the
// same identifier.
func DeriveID(source, fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%s-%s", sanitize(source), hex.EncodeToString(sum[:])[:12])
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// New creates a task in Needs_Action with its initial history entry.
func New(source, fingerprint string, kind Kind, now time.Time) *Task {
	return &Task{
		ID:          DeriveID(source, fingerprint),
		Source:      source,
		Fingerprint: fingerprint,
		Kind:        kind,
		Priority:    PriorityMedium,
		CreatedAt:   now,
		Bucket:      BucketNeedsAction,
		History:     []StateChange{{Bucket: BucketNeedsAction, At: now}},
	}
}

// Terminal reports whether the task reached a final bucket.
func (t *Task) Terminal() bool {
	return t.Bucket.Terminal()
}

// RecordTransition moves the task to dst and appends the history entry. The
// caller (the store) validates legality beforehand.
func (t *Task) RecordTransition(dst Bucket, at time.Time) {
	t.Bucket = dst
	t.History = append(t.History, StateChange{Bucket: dst, At: at})
}

// AddNote appends a plain-language annotation.
func (t *Task) AddNote(note string) {
	if note == "" {
		return
	}
	t.Notes = append(t.Notes, note)
}
