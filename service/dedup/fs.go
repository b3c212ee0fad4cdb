package dedup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/taskvault/taskvault/internal/clock"
)

// Service is a filesystem dedup store: one JSON record per fingerprint under
// basePath/<source>/<key>.json. The file's existence is the membership test,
// so reads need no locking; an in-memory set shortcuts repeat lookups.
type Service struct {
	basePath string
	fs       afs.Service

	mu   sync.RWMutex
	seen map[string]struct{}
}

var _ Store = (*Service)(nil)

// NewFs creates a dedup store rooted at basePath.
func NewFs(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	s := &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       afs.New(),
		seen:     make(map[string]struct{}),
	}
	ctx := context.Background()
	if exists, _ := s.fs.Exists(ctx, s.basePath); !exists {
		if err := s.fs.Create(ctx, s.basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create dedup directory: %w", err)
		}
	}
	return s, nil
}

func (s *Service) Seen(ctx context.Context, source, fingerprint string) (bool, error) {
	key := recordKey(source, fingerprint)
	s.mu.RLock()
	_, cached := s.seen[key]
	s.mu.RUnlock()
	if cached {
		return true, nil
	}
	exists, err := s.fs.Exists(ctx, s.recordPath(source, fingerprint))
	if err != nil {
		return false, fmt.Errorf("failed to check dedup record: %w", err)
	}
	if exists {
		s.mu.Lock()
		s.seen[key] = struct{}{}
		s.mu.Unlock()
	}
	return exists, nil
}

func (s *Service) Record(ctx context.Context, source, fingerprint string) (bool, error) {
	key := recordKey(source, fingerprint)

	s.mu.Lock()
	if _, ok := s.seen[key]; ok {
		s.mu.Unlock()
		return true, nil
	}
	// Claim the key before touching the filesystem so that concurrent
	// Record calls for the same fingerprint serialize here.
	s.seen[key] = struct{}{}
	s.mu.Unlock()

	recordPath := s.recordPath(source, fingerprint)
	if exists, _ := s.fs.Exists(ctx, recordPath); exists {
		return true, nil
	}
	record := Record{Source: source, Fingerprint: fingerprint, FirstSeen: clock.Now()}
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal dedup record: %w", err)
	}
	if err := s.fs.Upload(ctx, recordPath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		s.mu.Lock()
		delete(s.seen, key)
		s.mu.Unlock()
		return false, fmt.Errorf("failed to write dedup record: %w", err)
	}
	return false, nil
}

func (s *Service) recordPath(source, fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return path.Join(s.basePath, source, hex.EncodeToString(sum[:])+".json")
}

func recordKey(source, fingerprint string) string {
	return source + "\x00" + fingerprint
}
