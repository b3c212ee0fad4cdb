// Package dropzone watches a drop folder: every new file appearing under it
// becomes a candidate task fingerprinted by its content hash, so the same
// file dropped twice is ingested once.
package dropzone

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/source"
)

const defaultInterval = 10 * time.Second

// priorityByExt mirrors the document types the business cares most about.
var priorityByExt = map[string]model.Priority{
	".pdf": model.PriorityHigh,
	".xls": model.PriorityHigh, ".xlsx": model.PriorityHigh,
	".csv": model.PriorityHigh,
	".eml": model.PriorityHigh, ".msg": model.PriorityHigh,
	".doc": model.PriorityMedium, ".docx": model.PriorityMedium,
}

var categoryByExt = map[string]string{
	".pdf": "Document", ".doc": "Document", ".docx": "Document",
	".xls": "Spreadsheet", ".xlsx": "Spreadsheet",
	".csv": "Data", ".txt": "Text",
	".jpg": "Image", ".jpeg": "Image", ".png": "Image", ".gif": "Image",
	".mp4": "Video", ".mp3": "Audio", ".wav": "Audio",
	".zip": "Archive", ".rar": "Archive",
	".eml": "Email", ".msg": "Email",
}

// Adapter polls a watched directory via afs.
type Adapter struct {
	name       string
	watchPath  string
	interval   time.Duration
	fs         afs.Service
	extensions map[string]struct{}
}

var _ source.Adapter = (*Adapter)(nil)

// Option mutates the adapter during construction.
type Option func(*Adapter)

// WithInterval overrides the polling cadence.
func WithInterval(interval time.Duration) Option {
	return func(a *Adapter) { a.interval = interval }
}

// WithExtensions restricts which file extensions are picked up.
func WithExtensions(exts ...string) Option {
	return func(a *Adapter) {
		a.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			a.extensions[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// New creates a dropzone adapter watching watchPath.
func New(watchPath string, options ...Option) (*Adapter, error) {
	if watchPath == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	a := &Adapter{
		name:      "dropzone",
		watchPath: url.Normalize(watchPath, file.Scheme),
		interval:  defaultInterval,
		fs:        afs.New(),
	}
	for _, opt := range options {
		opt(a)
	}
	ctx := context.Background()
	if exists, _ := a.fs.Exists(ctx, a.watchPath); !exists {
		if err := a.fs.Create(ctx, a.watchPath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create dropzone directory: %w", err)
		}
	}
	return a, nil
}

func (a *Adapter) Name() string            { return a.name }
func (a *Adapter) Interval() time.Duration { return a.interval }

// Poll lists the watched directory and returns one candidate per supported
// file. Fingerprinting reads the full content, so a renamed copy of a known
// file is still recognised as a duplicate downstream.
func (a *Adapter) Poll(ctx context.Context) ([]source.Candidate, error) {
	objects, err := a.fs.List(ctx, a.watchPath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list dropzone: %w", err)
	}
	var candidates []source.Candidate
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(object.Name()))
		if !a.supported(ext) {
			continue
		}
		data, err := a.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", object.Name(), err)
		}
		sum := sha256.Sum256(data)
		candidates = append(candidates, a.candidate(object.Name(), object.URL(), ext, int64(len(data)), hex.EncodeToString(sum[:])))
	}
	return candidates, nil
}

func (a *Adapter) candidate(name, location, ext string, size int64, fingerprint string) source.Candidate {
	priority, ok := priorityByExt[ext]
	if !ok {
		priority = model.PriorityMedium
	}
	category, ok := categoryByExt[ext]
	if !ok {
		category = "Unknown"
	}
	body := fmt.Sprintf("## File Details\n- **Name:** %s\n- **Size:** %d bytes\n- **Type:** %s (%s)\n\nThe file is in the dropzone and requires processing.\n",
		name, size, category, ext)
	return source.Candidate{
		Source:      a.name,
		Fingerprint: fingerprint,
		Kind:        model.KindFile,
		Priority:    priority,
		Title:       "Process File: " + name,
		Body:        body,
		Payload: model.Payload{
			File: &model.FilePayload{Path: location, Size: size, Category: category, Ext: ext},
		},
	}
}

func (a *Adapter) supported(ext string) bool {
	if ext == "" {
		return false
	}
	if a.extensions == nil {
		_, known := categoryByExt[ext]
		return known
	}
	_, ok := a.extensions[ext]
	return ok
}
