// Package ingestion admits candidates produced by source adapters into the
// task store, dropping anything already seen.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/dedup"
	"github.com/taskvault/taskvault/service/source"
	"github.com/taskvault/taskvault/service/store"
)

// Service is the sole write path from sources into the vault. Admission is
// idempotent: the same candidate admitted any number of times yields exactly
// one task.
type Service struct {
	store store.Store
	seen  dedup.Store
}

var _ source.Sink = (*Service)(nil)

// New creates an ingestion service.
func New(taskStore store.Store, seen dedup.Store) *Service {
	return &Service{store: taskStore, seen: seen}
}

// Admit creates a task for the candidate unless its fingerprint was seen
// before. Known fingerprints and duplicate identifiers are dropped silently;
// only infrastructure failures surface as errors.
func (s *Service) Admit(ctx context.Context, candidate source.Candidate) error {
	if candidate.Source == "" || candidate.Fingerprint == "" {
		return fmt.Errorf("candidate from %q missing fingerprint", candidate.Source)
	}
	known, err := s.seen.Seen(ctx, candidate.Source, candidate.Fingerprint)
	if err != nil {
		return fmt.Errorf("dedup lookup failed: %w", err)
	}
	if known {
		return nil
	}

	task := model.New(candidate.Source, candidate.Fingerprint, candidate.Kind, clock.Now())
	task.Title = candidate.Title
	task.Content = candidate.Body
	task.Payload = candidate.Payload
	if candidate.Priority != "" {
		task.Priority = candidate.Priority
	}

	// Create before recording the sighting: a crash in between means the next
	// poll retries admission and lands on ErrDuplicate, which is harmless. The
	// reverse order would lose the task.
	if err := s.store.Create(ctx, task); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("failed to create task %s: %w", task.ID, err)
		}
	} else {
		log.Printf("[ingestion] admitted task %s (%s)", task.ID, task.Title)
	}
	if _, err := s.seen.Record(ctx, candidate.Source, candidate.Fingerprint); err != nil {
		return fmt.Errorf("failed to record sighting for %s: %w", task.ID, err)
	}
	return nil
}
