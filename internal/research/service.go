package research

import (
	"context"
	"log/slog"

	"github.com/seovimalraj/locations/pkg/logger"
)

// Observer is notified after every successful run.
type Observer interface {
	ResearchCompleted(ctx context.Context, run *Run)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, run *Run)

func (f ObserverFunc) ResearchCompleted(ctx context.Context, run *Run) { f(ctx, run) }

// Service runs the pipeline and records what it produced. Persistence and
// observers never change the outcome of a run.
type Service struct {
	pipeline  *Pipeline
	store     Store
	observers []Observer
	logger    *slog.Logger
}

// NewService wires a pipeline to an optional store and observers.
func NewService(pipeline *Pipeline, store Store, observers ...Observer) *Service {
	return &Service{
		pipeline:  pipeline,
		store:     store,
		observers: observers,
		logger:    slog.Default().With("component", "research-service"),
	}
}

func (s *Service) Research(ctx context.Context, req Request) (*Result, error) {
	run, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Save(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("failed to persist research run",
				"run_id", run.ID,
				"request_id", logger.RequestID(ctx),
				"error", err,
			)
		}
	}
	for _, o := range s.observers {
		o.ResearchCompleted(ctx, run)
	}
	return run.Result, nil
}

// Lookup returns a stored run by ID.
func (s *Service) Lookup(ctx context.Context, id string) (*Run, error) {
	if s.store == nil {
		return nil, notFound(id)
	}
	return s.store.Get(ctx, id)
}

// Recent lists the newest stored runs.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, limit)
}
