package taskvault

import (
	"github.com/taskvault/taskvault/service/dedup"
	"github.com/taskvault/taskvault/service/executor"
	"github.com/taskvault/taskvault/service/health"
	"github.com/taskvault/taskvault/service/reasoning"
	"github.com/taskvault/taskvault/service/source"
	"github.com/taskvault/taskvault/service/store"
)

// Option customises the service during construction.
type Option func(s *Service)

// WithStore replaces the default filesystem task store.
func WithStore(taskStore store.Store) Option {
	return func(s *Service) { s.store = taskStore }
}

// WithDedupStore replaces the default filesystem dedup store.
func WithDedupStore(seen dedup.Store) Option {
	return func(s *Service) { s.seen = seen }
}

// WithEngine replaces the default rule-based reasoning engine.
func WithEngine(engine reasoning.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// WithExecutorRegistry replaces the default executor wiring.
func WithExecutorRegistry(registry *executor.Registry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithMonitor replaces the health monitor.
func WithMonitor(monitor *health.Monitor) Option {
	return func(s *Service) { s.monitor = monitor }
}

// WithAdapters registers additional source adapters next to the configured
// dropzone and mailbox ones.
func WithAdapters(adapters ...source.Adapter) Option {
	return func(s *Service) { s.adapters = append(s.adapters, adapters...) }
}
