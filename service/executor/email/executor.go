// Package email executes communication actions by sending mail through the
// Gmail API. The message body comes from the approved plan's draft; the
// recipient is the action's counterparty.
package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/internal/googleauth"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/executor"
)

// Executor sends one message per communication action.
type Executor struct {
	creds   googleauth.Credentials
	service *gmail.Service
}

var _ executor.Executor = (*Executor)(nil)

// Option mutates the executor during construction.
type Option func(*Executor)

// WithService injects a pre-built Gmail service; used by tests.
func WithService(service *gmail.Service) Option {
	return func(e *Executor) { e.service = service }
}

// New creates a Gmail-backed executor.
func New(creds googleauth.Credentials, options ...Option) *Executor {
	e := &Executor{creds: creds}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Execute sends the reply and reports the provider message id.
func (e *Executor) Execute(ctx context.Context, task *model.Task, action model.ProposedAction) (*model.ExecutionResult, error) {
	if action.Counterparty == "" {
		return nil, fmt.Errorf("communication action on task %s has no recipient", task.ID)
	}
	body := ""
	if task.Plan != nil {
		body = task.Plan.Draft
	}
	if body == "" {
		body = action.Description
	}
	raw := RawMessage(action.Counterparty, subjectFor(task), body)

	service, err := e.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message for task %s: %w", task.ID, err)
	}
	return &model.ExecutionResult{
		Success:    true,
		ExternalID: sent.Id,
		Message:    "sent to " + action.Counterparty,
		At:         clock.Now(),
	}, nil
}

func (e *Executor) ensureService(ctx context.Context) (*gmail.Service, error) {
	if e.service != nil {
		return e.service, nil
	}
	service, err := googleauth.GmailService(ctx, e.creds, gmail.GmailSendScope)
	if err != nil {
		return nil, err
	}
	e.service = service
	return service, nil
}

func subjectFor(task *model.Task) string {
	if task.Payload.Email != nil && task.Payload.Email.Subject != "" {
		subject := task.Payload.Email.Subject
		if !strings.HasPrefix(strings.ToLower(subject), "re:") {
			subject = "Re: " + subject
		}
		return subject
	}
	return task.Title
}

// RawMessage builds the base64url-encoded RFC 2822 message the Gmail API
// expects in Message.Raw.
func RawMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}
