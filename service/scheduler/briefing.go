package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/service/health"
	"github.com/taskvault/taskvault/service/store"
)

// Briefing writes markdown situation reports into the vault's Briefings
// folder: a daily one covering the current workload and a weekly one
// summarising throughput.
type Briefing struct {
	fs       afs.Service
	basePath string
	store    store.Store
	monitor  *health.Monitor
}

// NewBriefing creates a briefing writer rooted at basePath.
func NewBriefing(basePath string, taskStore store.Store, monitor *health.Monitor) *Briefing {
	return &Briefing{
		fs:       afs.New(),
		basePath: url.Normalize(basePath, file.Scheme),
		store:    taskStore,
		monitor:  monitor,
	}
}

// Daily writes today's briefing: bucket counts, open approvals and anything
// parked in Error.
func (b *Briefing) Daily(ctx context.Context) error {
	now := clock.Now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Briefing — %s\n\n", now.Format("2006-01-02"))

	counts, err := b.bucketCounts(ctx)
	if err != nil {
		return err
	}
	sb.WriteString("## Workload\n\n")
	for _, bucket := range model.Buckets() {
		fmt.Fprintf(&sb, "- %s: %d\n", bucket, counts[bucket])
	}

	pending, err := b.store.ListByBucket(ctx, model.BucketPendingApproval)
	if err != nil {
		return err
	}
	sb.WriteString("\n## Awaiting Your Decision\n\n")
	if len(pending) == 0 {
		sb.WriteString("Nothing awaits approval.\n")
	}
	for _, task := range pending {
		line := fmt.Sprintf("- **%s** (%s)", task.Title, task.ID)
		if task.Approval != nil {
			line += fmt.Sprintf(" — due %s", task.Approval.Deadline.Format("2006-01-02 15:04"))
			if task.Approval.Urgent {
				line += " **OVERDUE**"
			}
		}
		sb.WriteString(line + "\n")
	}

	parked, err := b.store.ListByBucket(ctx, model.BucketError)
	if err != nil {
		return err
	}
	if len(parked) > 0 {
		sb.WriteString("\n## Needs Attention\n\n")
		for _, task := range parked {
			note := ""
			if len(task.Notes) > 0 {
				note = ": " + task.Notes[len(task.Notes)-1]
			}
			fmt.Fprintf(&sb, "- **%s** (%s)%s\n", task.Title, task.ID, note)
		}
	}

	sb.WriteString("\n## System Health\n\n")
	sb.WriteString(b.healthSection())

	location := url.Join(b.basePath, fmt.Sprintf("daily-%s.md", now.Format("2006-01-02")))
	return b.fs.Upload(ctx, location, file.DefaultFileOsMode, strings.NewReader(sb.String()))
}

// Weekly writes the throughput summary for the last seven days.
func (b *Briefing) Weekly(ctx context.Context) error {
	now := clock.Now()
	since := now.AddDate(0, 0, -7)
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Weekly Briefing — week ending %s\n\n", now.Format("2006-01-02"))

	var done, rejected, failed int
	for _, bucket := range []model.Bucket{model.BucketDone, model.BucketRejected, model.BucketError} {
		tasks, err := b.store.ListByBucket(ctx, bucket)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if len(task.History) == 0 || task.History[len(task.History)-1].At.Before(since) {
				continue
			}
			switch bucket {
			case model.BucketDone:
				done++
			case model.BucketRejected:
				rejected++
			case model.BucketError:
				failed++
			}
		}
	}
	sb.WriteString("## Throughput\n\n")
	fmt.Fprintf(&sb, "- Completed: %d\n", done)
	fmt.Fprintf(&sb, "- Rejected: %d\n", rejected)
	fmt.Fprintf(&sb, "- Failed: %d\n", failed)

	counts, err := b.bucketCounts(ctx)
	if err != nil {
		return err
	}
	var open int
	for _, bucket := range model.Buckets() {
		if !bucket.Terminal() {
			open += counts[bucket]
		}
	}
	fmt.Fprintf(&sb, "\n## Open Work\n\n- In flight: %d\n- Awaiting approval: %d\n", open, counts[model.BucketPendingApproval])

	location := url.Join(b.basePath, fmt.Sprintf("weekly-%s.md", now.Format("2006-01-02")))
	return b.fs.Upload(ctx, location, file.DefaultFileOsMode, strings.NewReader(sb.String()))
}

func (b *Briefing) bucketCounts(ctx context.Context) (map[model.Bucket]int, error) {
	counts := make(map[model.Bucket]int)
	for _, bucket := range model.Buckets() {
		tasks, err := b.store.ListByBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		counts[bucket] = len(tasks)
	}
	return counts, nil
}

func (b *Briefing) healthSection() string {
	if b.monitor == nil {
		return "No health monitor attached.\n"
	}
	report := b.monitor.Check()
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		status := report[name]
		line := fmt.Sprintf("- %s: %s", name, status.State)
		if status.LastError != "" {
			line += " (" + status.LastError + ")"
		}
		sb.WriteString(line + "\n")
	}
	if sb.Len() == 0 {
		return "No components registered.\n"
	}
	return sb.String()
}
