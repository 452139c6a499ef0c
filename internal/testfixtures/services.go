package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/classroom-service/internal/application"
	"github.com/example/classroom-service/internal/persistence"
)

// ServiceFactory builds classroom services with deterministic identifiers
// and clocks.
type ServiceFactory struct {
	Clock *Clock
	IDs   *Sequence
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory whose clock stands still at
// ReferenceTime and whose ids are "classroom-1", "classroom-2", ...
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{}, 0)
	}
	if factory.IDs == nil {
		factory.IDs = NewSequence("classroom")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithTick uses a clock starting at ReferenceTime that advances by d on every read.
func WithTick(d time.Duration) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = NewClock(time.Time{}, d)
	}
}

// WithIDs overrides the identifier sequence.
func WithIDs(ids *Sequence) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDs = ids
	}
}

// NewClassroomService builds a classroom service over the supplied backend.
func (f *ServiceFactory) NewClassroomService(backend persistence.ClassroomStore, logger *slog.Logger) *application.ClassroomService {
	return application.NewClassroomServiceWithLogger(
		application.NewPersistenceStore(backend),
		f.IDs.Next,
		f.Clock.Now,
		logger,
	)
}
