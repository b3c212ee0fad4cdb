// Package fs implements the task store on a directory tree: one directory
// per bucket, one markdown document per task, moved between directories as
// the task advances. The directory layout is the system of record; in-memory
// indices are rebuilt from it on startup.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/store"
)

const historyDir = "History"

// Service implements store.Store over a vault directory.
type Service struct {
	basePath string
	fs       afs.Service

	// index caches bucket membership; the directories stay authoritative.
	mu    sync.RWMutex
	index map[string]model.Bucket

	// locks serializes operations per task identifier.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ store.Store = (*Service)(nil)

// New creates a filesystem task store rooted at basePath, ensuring the bucket
// directories exist and rebuilding the membership index from the documents
// found on disk.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	s := &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       afs.New(),
		index:    make(map[string]model.Bucket),
		locks:    make(map[string]*sync.Mutex),
	}
	ctx := context.Background()
	for _, bucket := range model.Buckets() {
		dir := s.bucketPath(bucket)
		if exists, _ := s.fs.Exists(ctx, dir); !exists {
			if err := s.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create bucket directory %s: %w", dir, err)
			}
		}
	}
	historyPath := path.Join(s.basePath, historyDir)
	if exists, _ := s.fs.Exists(ctx, historyPath); !exists {
		if err := s.fs.Create(ctx, historyPath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := s.reindex(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// reindex rebuilds bucket membership purely from the persisted documents.
// When a crash left a document in two buckets (write-then-delete was
// interrupted), the copy whose frontmatter state matches its directory wins
// and the stale one is removed.
func (s *Service) reindex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[string]model.Bucket)
	for _, bucket := range model.Buckets() {
		objects, err := s.fs.List(ctx, s.bucketPath(bucket))
		if err != nil {
			return fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}
		for _, object := range objects {
			if object.IsDir() || path.Ext(object.Name()) != ".md" {
				continue
			}
			data, err := s.fs.Download(ctx, object)
			if err != nil {
				continue
			}
			task, err := model.UnmarshalDocument(data)
			if err != nil {
				continue
			}
			previous, seen := s.index[task.ID]
			if !seen {
				s.index[task.ID] = bucket
				continue
			}
			// Duplicate across buckets: keep the copy whose recorded state
			// matches its directory, drop the other.
			if task.Bucket == bucket {
				_ = s.fs.Delete(ctx, s.taskPath(previous, task.ID))
				s.index[task.ID] = bucket
			} else {
				_ = s.fs.Delete(ctx, object.URL())
			}
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, task *model.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("cannot create task without id")
	}
	unlock := s.lockTask(task.ID)
	defer unlock()

	if _, ok := s.bucketOf(task.ID); ok {
		return store.ErrDuplicate
	}
	if err := s.write(ctx, task); err != nil {
		return err
	}
	s.setBucket(task.ID, task.Bucket)
	s.appendHistoryLog(ctx, task.ID, fmt.Sprintf("created in %s", task.Bucket))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("task id cannot be empty")
	}
	unlock := s.lockTask(id)
	defer unlock()
	bucket, ok := s.bucketOf(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.read(ctx, bucket, id)
}

func (s *Service) ListByBucket(ctx context.Context, bucket model.Bucket) ([]*model.Task, error) {
	objects, err := s.fs.List(ctx, s.bucketPath(bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}
	var tasks []*model.Task
	for _, object := range objects {
		if object.IsDir() || path.Ext(object.Name()) != ".md" {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		task, err := model.UnmarshalDocument(data)
		if err != nil {
			continue
		}
		// The index is the membership authority: a document still present in
		// a directory mid-move (or left behind by a crash) is not listed.
		if current, ok := s.bucketOf(task.ID); !ok || current != bucket {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Service) Transition(ctx context.Context, id string, from, to model.Bucket, mutation store.Mutation) (*model.Task, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
	}
	unlock := s.lockTask(id)
	defer unlock()

	current, ok := s.bucketOf(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	if current != from {
		return nil, fmt.Errorf("%w: task %s is in %s, expected %s", store.ErrConflict, id, current, from)
	}
	task, err := s.read(ctx, from, id)
	if err != nil {
		return nil, err
	}
	if task.Bucket != from {
		return nil, fmt.Errorf("%w: document records %s, expected %s", store.ErrConflict, task.Bucket, from)
	}
	if mutation != nil {
		if err := mutation(task); err != nil {
			return nil, err
		}
	}
	task.RecordTransition(to, clock.Now())

	// Destination first, then source: an interrupted move is healed by
	// reindex in favour of the matching copy.
	if err := s.write(ctx, task); err != nil {
		return nil, err
	}
	if err := s.fs.Delete(ctx, s.taskPath(from, id)); err != nil {
		return nil, fmt.Errorf("failed to remove task from %s: %w", from, err)
	}
	s.setBucket(id, to)
	s.appendHistoryLog(ctx, id, fmt.Sprintf("%s -> %s", from, to))
	return task, nil
}

func (s *Service) Append(ctx context.Context, id string, field string, value interface{}) (*model.Task, error) {
	unlock := s.lockTask(id)
	defer unlock()

	bucket, ok := s.bucketOf(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	task, err := s.read(ctx, bucket, id)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyAppend(task, field, value); err != nil {
		return nil, err
	}
	if err := s.write(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Update(ctx context.Context, id string, mutation store.Mutation) (*model.Task, error) {
	unlock := s.lockTask(id)
	defer unlock()

	bucket, ok := s.bucketOf(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	task, err := s.read(ctx, bucket, id)
	if err != nil {
		return nil, err
	}
	if mutation != nil {
		if err := mutation(task); err != nil {
			return nil, err
		}
	}
	if err := s.write(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Ping verifies the vault is reachable; used by the health monitor.
func (s *Service) Ping(ctx context.Context) error {
	exists, err := s.fs.Exists(ctx, s.basePath)
	if err != nil {
		return fmt.Errorf("vault not reachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("vault directory %s missing", s.basePath)
	}
	return nil
}

// --- internals -------------------------------------------------------------

func (s *Service) bucketPath(bucket model.Bucket) string {
	return path.Join(s.basePath, string(bucket))
}

func (s *Service) taskPath(bucket model.Bucket, id string) string {
	return path.Join(s.bucketPath(bucket), id+".md")
}

func (s *Service) read(ctx context.Context, bucket model.Bucket, id string) (*model.Task, error) {
	data, err := s.fs.DownloadWithURL(ctx, s.taskPath(bucket, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}
	task, err := model.UnmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse task %s: %w", id, err)
	}
	return task, nil
}

func (s *Service) write(ctx context.Context, task *model.Task) error {
	data, err := model.MarshalDocument(task)
	if err != nil {
		return err
	}
	target := s.taskPath(task.Bucket, task.ID)
	if err := s.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Service) bucketOf(id string) (model.Bucket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.index[id]
	return bucket, ok
}

func (s *Service) setBucket(id string, bucket model.Bucket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[id] = bucket
}

func (s *Service) lockTask(id string) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.locksMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// appendHistoryLog records the move in the per-task immutable history log.
// Best effort: the document's own stateHistory remains authoritative.
func (s *Service) appendHistoryLog(ctx context.Context, id, entry string) {
	logPath := path.Join(s.basePath, historyDir, id+".log")
	var previous []byte
	if exists, _ := s.fs.Exists(ctx, logPath); exists {
		previous, _ = s.fs.DownloadWithURL(ctx, logPath)
	}
	line := fmt.Sprintf("%s %s\n", clock.Now().Format("2006-01-02T15:04:05Z07:00"), entry)
	_ = s.fs.Upload(ctx, logPath, file.DefaultFileOsMode, bytes.NewReader(append(previous, line...)))
}
