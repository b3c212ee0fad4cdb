// Package orchestrator drives tasks through their lifecycle: it claims new
// tasks for planning, gates risky plans behind approval requests, applies
// human decisions and executes approved actions. All state lives in the task
// store; workers coordinate purely through atomic bucket transitions, so any
// number of them (or of whole processes) can run against the same vault.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/internal/idgen"
	"github.com/taskvault/taskvault/model"
	"github.com/taskvault/taskvault/policy"
	"github.com/taskvault/taskvault/service/executor"
	"github.com/taskvault/taskvault/service/reasoning"
	"github.com/taskvault/taskvault/service/store"
	"github.com/taskvault/taskvault/tracing"
)

// Config tunes the worker pool and the per-step retry behavior.
type Config struct {
	// WorkerCount is the number of workers sweeping the buckets.
	WorkerCount int

	// ScanInterval is the pause between sweeps of an idle worker.
	ScanInterval time.Duration

	// ReasoningTimeout bounds a single Plan call.
	ReasoningTimeout time.Duration

	// ReasoningRetries is the number of additional Plan attempts after a
	// transient failure before the task is parked in Error.
	ReasoningRetries int

	// ExecutionTimeout bounds a single action execution.
	ExecutionTimeout time.Duration

	// ExecutionRetries is the number of additional execution attempts per
	// action.
	ExecutionRetries int

	// RetryDelay is the pause between retry attempts.
	RetryDelay time.Duration

	// ApprovalTTL is how long an approval request may wait before it is
	// flagged urgent; deferrals extend the deadline by the same amount.
	ApprovalTTL time.Duration
}

// DefaultConfig returns the tuning the system ships with.
func DefaultConfig() Config {
	return Config{
		WorkerCount:      4,
		ScanInterval:     5 * time.Second,
		ReasoningTimeout: 30 * time.Second,
		ReasoningRetries: 2,
		ExecutionTimeout: time.Minute,
		ExecutionRetries: 2,
		RetryDelay:       3 * time.Second,
		ApprovalTTL:      24 * time.Hour,
	}
}

// Service is the lifecycle engine.
type Service struct {
	config    Config
	store     store.Store
	engine    reasoning.Engine
	evaluator *policy.Evaluator
	registry  *executor.Registry

	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once

	// activeMu guards active, the set of task ids a worker of this process is
	// currently planning or executing. The recovery sweep skips those.
	activeMu sync.Mutex
	active   map[string]struct{}
}

// New creates an orchestrator.
func New(taskStore store.Store, engine reasoning.Engine, evaluator *policy.Evaluator, registry *executor.Registry, config Config) *Service {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultConfig().ScanInterval
	}
	if config.ApprovalTTL <= 0 {
		config.ApprovalTTL = DefaultConfig().ApprovalTTL
	}
	return &Service{
		config:     config,
		store:      taskStore,
		engine:     engine,
		evaluator:  evaluator,
		registry:   registry,
		shutdownCh: make(chan struct{}),
		active:     make(map[string]struct{}),
	}
}

// Start launches the worker pool. It returns immediately; workers run until
// Shutdown or context cancellation.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		for i := 0; i < s.config.WorkerCount; i++ {
			s.workerWg.Add(1)
			go s.run(ctx, i)
		}
	})
}

// Shutdown stops the workers and waits for in-flight steps to finish.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() { close(s.shutdownCh) })
	s.workerWg.Wait()
}

func (s *Service) run(ctx context.Context, id int) {
	defer s.workerWg.Done()
	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-ticker.C:
			if err := s.ProcessOnce(ctx); err != nil {
				log.Printf("[orchestrator] worker %d sweep failed: %v", id, err)
			}
		}
	}
}

// ProcessOnce performs one synchronous sweep over every non-terminal bucket.
// Safe to call concurrently; lost claims are skipped silently.
func (s *Service) ProcessOnce(ctx context.Context) error {
	steps := []func(context.Context) error{
		s.sweepInProgress,
		s.sweepNeedsAction,
		s.sweepPlans,
		s.sweepPendingApproval,
		s.sweepApproved,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sweepInProgress recovers tasks stranded in the claim bucket by a crash or
// shutdown. A task without a plan was interrupted while planning and is simply
// re-planned; one with a plan but no results was interrupted before execution
// started and is executed; one with recorded results may have had external
// effect already, so it is parked for human review instead of re-run.
func (s *Service) sweepInProgress(ctx context.Context) error {
	tasks, err := s.store.ListByBucket(ctx, model.BucketInProgress)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if !s.acquire(task.ID) {
			continue
		}
		// Re-read under the claim: the task may have moved on since the
		// listing, in which case there is nothing to recover.
		current, err := s.store.Get(ctx, task.ID)
		if err != nil || current.Bucket != model.BucketInProgress {
			s.release(task.ID)
			continue
		}
		switch {
		case current.Plan == nil:
			s.plan(ctx, current)
		case len(current.Results) == 0:
			s.execute(ctx, current)
		default:
			s.park(ctx, current.ID, model.BucketInProgress,
				"Interrupted during execution; some actions may already have run. Review the recorded results, then move this task back to Approved to retry the rest.")
		}
		s.release(task.ID)
	}
	return nil
}

// sweepNeedsAction claims new tasks and drafts their plans.
func (s *Service) sweepNeedsAction(ctx context.Context) error {
	tasks, err := s.store.ListByBucket(ctx, model.BucketNeedsAction)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		claimed, err := s.store.Transition(ctx, task.ID, model.BucketNeedsAction, model.BucketInProgress, nil)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Another worker won the claim.
				continue
			}
			return err
		}
		if !s.acquire(claimed.ID) {
			continue
		}
		s.plan(ctx, claimed)
		s.release(claimed.ID)
	}
	return nil
}

func (s *Service) acquire(id string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if _, held := s.active[id]; held {
		return false
	}
	s.active[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	delete(s.active, id)
}

func (s *Service) plan(ctx context.Context, task *model.Task) {
	ctx, span := tracing.StartSpan(ctx, "task.plan")
	span.WithAttributes(map[string]string{"task.id": task.ID})
	plan, err := s.planWithRetry(ctx, task)
	tracing.EndSpan(span, err)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-step, not an engine fault: leave the task claimed
			// for the In_Progress sweep after restart.
			return
		}
		note := fmt.Sprintf("Planning failed: %v. The reasoning engine did not respond after %d attempts; check its availability and move this task back to Needs_Action to retry.",
			err, s.config.ReasoningRetries+1)
		s.park(ctx, task.ID, model.BucketInProgress, note)
		return
	}
	_, err = s.store.Transition(ctx, task.ID, model.BucketInProgress, model.BucketPlans, func(t *model.Task) error {
		t.Plan = plan
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("[orchestrator] failed to record plan for %s: %v", task.ID, err)
	}
}

func (s *Service) planWithRetry(ctx context.Context, task *model.Task) (*model.Plan, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.ReasoningRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}
		planCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.config.ReasoningTimeout > 0 {
			planCtx, cancel = context.WithTimeout(ctx, s.config.ReasoningTimeout)
		}
		plan, err := s.engine.Plan(planCtx, task)
		cancel()
		if err == nil {
			return plan, nil
		}
		lastErr = err
		log.Printf("[orchestrator] planning attempt %d for %s failed: %v", attempt+1, task.ID, err)
	}
	return nil, lastErr
}

// sweepPlans evaluates drafted plans against the security policy.
func (s *Service) sweepPlans(ctx context.Context) error {
	tasks, err := s.store.ListByBucket(ctx, model.BucketPlans)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.Plan == nil {
			s.park(ctx, task.ID, model.BucketPlans, "Task reached Plans without a plan document; re-ingest it or draft a plan by hand.")
			continue
		}
		verdict := s.assess(task.Plan)
		if verdict.Level == policy.AutoApprove {
			_, err := s.store.Transition(ctx, task.ID, model.BucketPlans, model.BucketApproved, func(t *model.Task) error {
				t.AddNote("Auto-approved: " + verdict.Reason)
				return nil
			})
			if err != nil && !errors.Is(err, store.ErrConflict) {
				return err
			}
			continue
		}
		request := s.approvalRequest(task, verdict)
		_, err := s.store.Transition(ctx, task.ID, model.BucketPlans, model.BucketPendingApproval, func(t *model.Task) error {
			t.Approval = request
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return nil
}

// assess returns the strictest verdict over all proposed actions. A plan the
// engine itself is unsure about never auto-approves, whatever the policy says.
func (s *Service) assess(plan *model.Plan) policy.Verdict {
	verdict := policy.Verdict{Level: policy.AutoApprove, Reason: "all actions within auto-approval bounds"}
	for _, action := range plan.Actions {
		v := s.evaluator.Evaluate(policy.Action{
			Category:     action.Category,
			Amount:       action.Amount,
			Counterparty: action.Counterparty,
			NewContact:   action.NewContact,
			Legal:        action.Legal,
			Irreversible: action.Irreversible,
			Description:  action.Description,
		})
		if v.Level > verdict.Level {
			verdict = v
		}
	}
	if plan.Confidence < reasoning.LowConfidence && verdict.Level < policy.HumanRequired {
		verdict = policy.Verdict{Level: policy.HumanRequired, Reason: fmt.Sprintf("plan confidence %.2f below %.2f", plan.Confidence, reasoning.LowConfidence)}
	}
	return verdict
}

func (s *Service) approvalRequest(task *model.Task, verdict policy.Verdict) *model.ApprovalRequest {
	risk := model.RiskOther
	var value float64
	for _, action := range task.Plan.Actions {
		if action.Amount > value {
			value = action.Amount
		}
		switch action.Category {
		case policy.CategoryPayment:
			risk = model.RiskFinancial
		case policy.CategoryCommunication:
			if risk == model.RiskOther {
				risk = model.RiskCommunication
			}
		case policy.CategoryDataAccess:
			if risk == model.RiskOther {
				risk = model.RiskData
			}
		}
	}
	return &model.ApprovalRequest{
		ID:             idgen.New(),
		RiskCategory:   risk,
		EstimatedValue: value,
		Justification:  verdict.Reason,
		Deadline:       clock.Now().Add(s.config.ApprovalTTL),
		Decision:       model.DecisionPending,
	}
}

// sweepPendingApproval applies human decisions written into the task
// documents. Overdue requests are flagged urgent but never auto-cancelled.
func (s *Service) sweepPendingApproval(ctx context.Context) error {
	tasks, err := s.store.ListByBucket(ctx, model.BucketPendingApproval)
	if err != nil {
		return err
	}
	now := clock.Now()
	for _, task := range tasks {
		request := task.Approval
		if request == nil {
			s.park(ctx, task.ID, model.BucketPendingApproval, "Task waits for approval but carries no approval request; re-evaluate its plan.")
			continue
		}
		switch request.Decision {
		case model.DecisionApproved, model.DecisionModified:
			_, err := s.store.Transition(ctx, task.ID, model.BucketPendingApproval, model.BucketApproved, s.markDecided(now))
			if err != nil && !errors.Is(err, store.ErrConflict) {
				return err
			}
		case model.DecisionRejected:
			_, err := s.store.Transition(ctx, task.ID, model.BucketPendingApproval, model.BucketRejected, s.markDecided(now))
			if err != nil && !errors.Is(err, store.ErrConflict) {
				return err
			}
		case model.DecisionDeferred:
			// Re-check under the task lock: a human decision written after the
			// listing must never be reverted by this stale snapshot.
			_, err := s.store.Update(ctx, task.ID, func(t *model.Task) error {
				r := t.Approval
				if r == nil || r.Decision != model.DecisionDeferred {
					return nil
				}
				return r.Defer(now.Add(s.config.ApprovalTTL))
			})
			if err != nil {
				log.Printf("[orchestrator] cannot defer approval on %s: %v", task.ID, err)
			}
		default:
			if request.Urgent || now.Before(request.Deadline) {
				continue
			}
			_, err := s.store.Update(ctx, task.ID, func(t *model.Task) error {
				r := t.Approval
				if r == nil || r.Decision != model.DecisionPending || r.Urgent || now.Before(r.Deadline) {
					return nil
				}
				r.Urgent = true
				return nil
			})
			if err != nil {
				return err
			}
			log.Printf("[orchestrator] approval on %s overdue, flagged urgent", task.ID)
		}
	}
	return nil
}

func (s *Service) markDecided(now time.Time) store.Mutation {
	return func(t *model.Task) error {
		if t.Approval != nil && t.Approval.DecidedAt == nil {
			at := now
			t.Approval.DecidedAt = &at
		}
		return nil
	}
}

// sweepApproved claims approved tasks and executes their actions.
func (s *Service) sweepApproved(ctx context.Context) error {
	tasks, err := s.store.ListByBucket(ctx, model.BucketApproved)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		claimed, err := s.store.Transition(ctx, task.ID, model.BucketApproved, model.BucketInProgress, nil)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return err
		}
		if !s.acquire(claimed.ID) {
			continue
		}
		s.execute(ctx, claimed)
		s.release(claimed.ID)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, task *model.Task) {
	if task.Plan == nil || len(task.Plan.Actions) == 0 {
		_, err := s.store.Transition(ctx, task.ID, model.BucketInProgress, model.BucketDone, func(t *model.Task) error {
			t.AddNote("No actions to execute.")
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			log.Printf("[orchestrator] failed to finish %s: %v", task.ID, err)
		}
		return
	}
	for _, action := range task.Plan.Actions {
		actionCtx, span := tracing.StartSpan(ctx, "task.execute")
		span.WithAttributes(map[string]string{"task.id": task.ID, "action.category": action.Category})
		result, err := s.executeWithRetry(actionCtx, task, action)
		tracing.EndSpan(span, err)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-step: leave the task claimed for recovery
				// instead of parking a healthy task.
				return
			}
			failure := model.ExecutionResult{Success: false, Message: err.Error(), At: clock.Now()}
			if _, appendErr := s.store.Append(ctx, task.ID, store.FieldResult, failure); appendErr != nil {
				log.Printf("[orchestrator] failed to record failure on %s: %v", task.ID, appendErr)
			}
			note := fmt.Sprintf("Execution of %q failed: %v. Fix the underlying issue, then move this task back to Approved to retry.",
				action.Description, err)
			s.park(ctx, task.ID, model.BucketInProgress, note)
			return
		}
		if _, err := s.store.Append(ctx, task.ID, store.FieldResult, *result); err != nil {
			log.Printf("[orchestrator] failed to record result on %s: %v", task.ID, err)
		}
	}
	_, err := s.store.Transition(ctx, task.ID, model.BucketInProgress, model.BucketDone, nil)
	if err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("[orchestrator] failed to finish %s: %v", task.ID, err)
	}
}

func (s *Service) executeWithRetry(ctx context.Context, task *model.Task, action model.ProposedAction) (*model.ExecutionResult, error) {
	exec, err := s.registry.Resolve(action.Category)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= s.config.ExecutionRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}
		execCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.config.ExecutionTimeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, s.config.ExecutionTimeout)
		}
		result, err := exec.Execute(execCtx, task, action)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("[orchestrator] execution attempt %d of %q on %s failed: %v", attempt+1, action.Category, task.ID, err)
	}
	return nil, lastErr
}

// park moves the task to Error with a plain-language explanation and a
// recommended next step.
func (s *Service) park(ctx context.Context, id string, from model.Bucket, note string) {
	_, err := s.store.Transition(ctx, id, from, model.BucketError, func(t *model.Task) error {
		t.AddNote(note)
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("[orchestrator] failed to park %s: %v", id, err)
	}
}
