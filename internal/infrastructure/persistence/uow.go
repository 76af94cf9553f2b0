package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/corpelima/backend/internal/domain/shared"
)

// ErrUnitOfWorkFinished is returned when a finished unit of work is reused.
var ErrUnitOfWorkFinished = errors.New("unit of work already committed or rolled back")

// EventHandlerFunc processes one domain event after the publishing
// transaction has committed. Errors are logged and counted, never propagated
// back to the publisher.
type EventHandlerFunc func(ctx context.Context, event shared.DomainEvent) error

// PendingEvent pairs an event with the handler that will consume it once the
// owning unit of work commits.
type PendingEvent struct {
	Event   shared.DomainEvent
	Handler EventHandlerFunc
}

// EventSink receives the pending queue of a unit of work at its terminal
// state: Dispatch on commit, Discard on rollback.
type EventSink interface {
	Dispatch(events []PendingEvent)
	Discard(events []PendingEvent)
}

// UnitOfWork wraps one database transaction together with the queue of
// events published during it. The queue reaches handlers only if — and
// after — the transaction commits; a rollback discards it. Each unit of
// work owns its queue outright, so concurrent units never share state.
type UnitOfWork struct {
	tx       *gorm.DB
	sink     EventSink
	logger   *zap.Logger
	pending  []PendingEvent
	finished bool
}

// DB returns the transaction handle. All repository work belonging to this
// unit of work must go through it.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.tx
}

// Enqueue appends a pending event to this unit of work's queue.
func (u *UnitOfWork) Enqueue(ev PendingEvent) error {
	if u.finished {
		return ErrUnitOfWorkFinished
	}
	u.pending = append(u.pending, ev)
	return nil
}

// PendingCount reports how many events await the commit.
func (u *UnitOfWork) PendingCount() int {
	return len(u.pending)
}

// Commit commits the transaction and, only on success, hands the pending
// queue to the sink. A failed commit discards the queue like a rollback.
func (u *UnitOfWork) Commit() error {
	if u.finished {
		return ErrUnitOfWorkFinished
	}
	u.finished = true

	if err := u.tx.Commit().Error; err != nil {
		u.discard()
		return err
	}

	queue := u.pending
	u.pending = nil
	if len(queue) > 0 && u.sink != nil {
		u.sink.Dispatch(queue)
	}
	return nil
}

// Rollback aborts the transaction and discards the pending queue; none of
// its handlers will ever run.
func (u *UnitOfWork) Rollback() error {
	if u.finished {
		return nil
	}
	u.finished = true
	err := u.tx.Rollback().Error
	u.discard()
	return err
}

func (u *UnitOfWork) discard() {
	if len(u.pending) == 0 {
		return
	}
	u.logger.Warn("Discarding pending events from aborted unit of work",
		zap.Int("count", len(u.pending)),
	)
	if u.sink != nil {
		u.sink.Discard(u.pending)
	}
	u.pending = nil
}

// UnitOfWorkManager opens units of work over one database connection and
// routes their event queues to the configured sink.
type UnitOfWorkManager struct {
	db     *gorm.DB
	sink   EventSink
	logger *zap.Logger
}

// NewUnitOfWorkManager creates a UnitOfWorkManager. The sink may be nil, in
// which case committed queues are dropped (useful in tests that only
// exercise persistence).
func NewUnitOfWorkManager(db *gorm.DB, sink EventSink, logger *zap.Logger) *UnitOfWorkManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitOfWorkManager{db: db, sink: sink, logger: logger}
}

// Begin opens a new transaction wrapped in a UnitOfWork.
func (m *UnitOfWorkManager) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &UnitOfWork{
		tx:     tx,
		sink:   m.sink,
		logger: m.logger,
	}, nil
}

// DB returns the non-transactional connection, for read paths that do not
// need a unit of work.
func (m *UnitOfWorkManager) DB() *gorm.DB {
	return m.db
}
