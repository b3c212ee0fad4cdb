package taskvault

import (
	"context"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/policy"
	"github.com/taskvault/taskvault/service/dedup"
	"github.com/taskvault/taskvault/service/executor"
	"github.com/taskvault/taskvault/service/executor/email"
	"github.com/taskvault/taskvault/service/executor/nop"
	"github.com/taskvault/taskvault/service/health"
	"github.com/taskvault/taskvault/service/ingestion"
	"github.com/taskvault/taskvault/service/orchestrator"
	"github.com/taskvault/taskvault/service/reasoning"
	"github.com/taskvault/taskvault/service/scheduler"
	"github.com/taskvault/taskvault/service/source"
	"github.com/taskvault/taskvault/service/source/dropzone"
	"github.com/taskvault/taskvault/service/source/mailbox"
	"github.com/taskvault/taskvault/service/store"
	storefs "github.com/taskvault/taskvault/service/store/fs"
	"github.com/taskvault/taskvault/tracing"
)

// Service assembles the task lifecycle system: store, sources, ingestion,
// orchestrator, health and scheduler. Construction wires everything; Runtime
// starts it.
type Service struct {
	config *Config

	store     store.Store
	seen      dedup.Store
	engine    reasoning.Engine
	evaluator *policy.Evaluator
	registry  *executor.Registry
	monitor   *health.Monitor

	adapters     []source.Adapter
	ingestion    *ingestion.Service
	orchestrator *orchestrator.Service
	briefing     *scheduler.Briefing
	scheduler    *scheduler.Service
}

// New creates a fully wired service from the configuration. Options may
// replace any collaborator before wiring completes.
func New(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Init()

	s := &Service{
		config:    config,
		evaluator: policy.New(config.Policy),
		monitor:   health.New(),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.wireStore(); err != nil {
		return nil, err
	}
	if err := s.wireSources(); err != nil {
		return nil, err
	}
	s.wireExecution()
	s.wireChores()

	if config.TraceFile != "" {
		if err := tracing.Init("taskvault", "0.1.0", config.TraceFile); err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	return s, nil
}

func (s *Service) wireStore() error {
	if s.store == nil {
		taskStore, err := storefs.New(s.config.VaultPath)
		if err != nil {
			return fmt.Errorf("failed to open vault: %w", err)
		}
		s.store = taskStore
	}
	if s.seen == nil {
		seen, err := dedup.NewFs(s.config.DedupPath)
		if err != nil {
			return fmt.Errorf("failed to open dedup store: %w", err)
		}
		s.seen = seen
	}
	s.ingestion = ingestion.New(s.store, s.seen)
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Service) wireSources() error {
	if s.config.DropzonePath != "" {
		var opts []dropzone.Option
		if s.config.DropzoneInterval > 0 {
			opts = append(opts, dropzone.WithInterval(time.Duration(s.config.DropzoneInterval)))
		}
		adapter, err := dropzone.New(s.config.DropzonePath, opts...)
		if err != nil {
			return err
		}
		s.adapters = append(s.adapters, adapter)
	}
	if s.config.Gmail.Configured() {
		var opts []mailbox.Option
		if s.config.MailInterval > 0 {
			opts = append(opts, mailbox.WithInterval(time.Duration(s.config.MailInterval)))
		}
		if s.config.MailFilter != "" {
			opts = append(opts, mailbox.WithFilter(s.config.MailFilter))
		}
		s.adapters = append(s.adapters, mailbox.New(s.config.Gmail, opts...))
	}
	for _, adapter := range s.adapters {
		s.monitor.Register(adapter.Name(), adapter.Interval())
	}
	return nil
}

func (s *Service) wireExecution() {
	if s.engine == nil {
		s.engine = reasoning.NewStatic()
	}
	if s.registry == nil {
		s.registry = executor.NewRegistry()
		s.registry.SetFallback(nop.New())
		if s.config.Gmail.Configured() {
			s.registry.Register(policy.CategoryCommunication, email.New(s.config.Gmail))
		}
	}
	s.orchestrator = orchestrator.New(s.store, s.engine, s.evaluator, s.registry, s.config.Orchestrator)
}

func (s *Service) wireChores() {
	if p, ok := s.store.(pinger); ok {
		s.monitor.RegisterProbe("store", time.Duration(s.config.HealthInterval), p.Ping)
	}
	s.briefing = scheduler.NewBriefing(s.config.BriefingPath, s.store, s.monitor)
	s.scheduler = scheduler.New()
}

// Store exposes the task store, e.g. for a CLI inspecting the vault.
func (s *Service) Store() store.Store { return s.store }

// Monitor exposes the health monitor.
func (s *Service) Monitor() *health.Monitor { return s.monitor }

// Briefing exposes the briefing writer for on-demand reports.
func (s *Service) Briefing() *scheduler.Briefing { return s.briefing }
