// Package mailbox turns incoming Gmail messages matching a configured filter
// into candidate tasks, fingerprinted by the provider message id.
package mailbox

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/taskvault/taskvault/internal/googleauth"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/source"
)

const (
	defaultInterval = 30 * time.Second
	defaultFilter   = "is:unread"
	maxBatch        = 25
)

// Adapter polls a Gmail mailbox. The Gmail service is built lazily on the
// first poll so that construction never blocks on the network; credential
// problems surface as a permanent failure from Poll.
type Adapter struct {
	name     string
	creds    googleauth.Credentials
	filter   string
	interval time.Duration
	service  *gmail.Service
}

var _ source.Adapter = (*Adapter)(nil)

// Option mutates the adapter during construction.
type Option func(*Adapter)

// WithInterval overrides the polling cadence.
func WithInterval(interval time.Duration) Option {
	return func(a *Adapter) { a.interval = interval }
}

// WithFilter overrides the Gmail search filter.
func WithFilter(filter string) Option {
	return func(a *Adapter) { a.filter = filter }
}

// WithService injects a pre-built Gmail service; used by tests.
func WithService(service *gmail.Service) Option {
	return func(a *Adapter) { a.service = service }
}

// New creates a mailbox adapter.
func New(creds googleauth.Credentials, options ...Option) *Adapter {
	a := &Adapter{
		name:     "mailbox",
		creds:    creds,
		filter:   defaultFilter,
		interval: defaultInterval,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string            { return a.name }
func (a *Adapter) Interval() time.Duration { return a.interval }

// Poll lists messages matching the filter and converts each to a candidate.
func (a *Adapter) Poll(ctx context.Context) ([]source.Candidate, error) {
	service, err := a.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := service.Users.Messages.List("me").Q(a.filter).MaxResults(maxBatch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var candidates []source.Candidate
	for _, ref := range listing.Messages {
		message, err := service.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch message %s: %w", ref.Id, err)
		}
		candidates = append(candidates, CandidateFromMessage(a.name, message))
	}
	return candidates, nil
}

func (a *Adapter) ensureService(ctx context.Context) (*gmail.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	if !a.creds.Configured() {
		return nil, fmt.Errorf("%w: mailbox credentials not configured", source.ErrPermanent)
	}
	service, err := googleauth.GmailService(ctx, a.creds,
		gmail.GmailReadonlyScope, gmail.GmailModifyScope)
	if err != nil {
		// A credential that cannot be loaded will not fix itself; stop the
		// adapter rather than hammering the API.
		return nil, fmt.Errorf("%w: %v", source.ErrPermanent, err)
	}
	a.service = service
	return service, nil
}

// CandidateFromMessage converts a fetched Gmail message into a candidate.
// Exposed so the conversion can be exercised without a live mailbox.
func CandidateFromMessage(sourceName string, message *gmail.Message) source.Candidate {
	subject := headerValue(message, "Subject")
	from := headerValue(message, "From")
	body := extractBody(message.Payload)
	if body == "" {
		body = message.Snippet
	}
	title := "Email: " + subject
	if subject == "" {
		title = "Email from " + from
	}
	content := fmt.Sprintf("## Email\n- **From:** %s\n- **Subject:** %s\n\n%s\n", from, subject, body)
	return source.Candidate{
		Source:      sourceName,
		Fingerprint: message.Id,
		Kind:        model.KindEmail,
		Priority:    model.PriorityHigh,
		Title:       title,
		Body:        content,
		Payload: model.Payload{
			Email: &model.EmailPayload{
				MessageID: message.Id,
				From:      from,
				Subject:   subject,
				Snippet:   message.Snippet,
			},
		},
	}
}
