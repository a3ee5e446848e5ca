package briefing

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/lifesync/backend/internal/model/finance"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/model/task"
)

// Section fallbacks used when a source is empty or unavailable.
const (
	NoTasks   = "No tasks found."
	NoFinance = "No financial data found."
	NoNotes   = "No notes found."
)

const (
	defaultNoteLimit     = 10
	defaultSourceTimeout = 5 * time.Second
)

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithSourceTimeout bounds each store read.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithNoteLimit sets how many recent notes are listed.
func WithNoteLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.noteLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// Aggregator renders a user's tasks, finances and notes into a briefing.
type Aggregator struct {
	tasks     task.Store
	finances  finance.Store
	notes     note.Store
	now       func() time.Time
	timeout   time.Duration
	noteLimit int
	log       logrus.FieldLogger
}

// NewAggregator wires the three collaborator stores.
func NewAggregator(tasks task.Store, finances finance.Store, notes note.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		tasks:     tasks,
		finances:  finances,
		notes:     notes,
		now:       time.Now,
		timeout:   defaultSourceTimeout,
		noteLimit: defaultNoteLimit,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("component", "briefing")
	return a
}

// Now returns the aggregator's current time.
func (a *Aggregator) Now() time.Time {
	return a.now()
}

// BuildBriefing returns the tasks, finance and notes sections in that order.
// Source failures degrade to the section fallback; an error is returned only
// when ctx itself is done.
func (a *Aggregator) BuildBriefing(ctx context.Context, ownerID string) (string, error) {
	now := a.now()
	sections := [3]string{NoTasks, NoFinance, NoNotes}

	var g errgroup.Group
	g.Go(func() error {
		sections[0] = a.taskSection(ctx, ownerID, now)
		return nil
	})
	g.Go(func() error {
		sections[1] = a.financeSection(ctx, ownerID)
		return nil
	})
	g.Go(func() error {
		sections[2] = a.notesSection(ctx, ownerID)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sections[0] + "\n" + sections[1] + "\n" + sections[2], nil
}

func (a *Aggregator) taskSection(ctx context.Context, ownerID string, now time.Time) string {
	if a.tasks == nil {
		return NoTasks
	}
	readCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tasks, err := a.tasks.ListTasks(readCtx, ownerID)
	if err != nil {
		a.log.WithError(err).WithField("owner", ownerID).Warn("task source unavailable")
		return NoTasks
	}
	return renderTasks(tasks, now)
}

func (a *Aggregator) financeSection(ctx context.Context, ownerID string) string {
	if a.finances == nil {
		return NoFinance
	}
	readCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	record, err := a.finances.GetFinance(readCtx, ownerID)
	if err != nil {
		if !errors.Is(err, finance.ErrNotFound) {
			a.log.WithError(err).WithField("owner", ownerID).Warn("finance source unavailable")
		}
		return NoFinance
	}
	return renderFinance(record)
}

func (a *Aggregator) notesSection(ctx context.Context, ownerID string) string {
	if a.notes == nil {
		return NoNotes
	}
	readCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	notes, err := a.notes.ListRecentNotes(readCtx, ownerID, a.noteLimit)
	if err != nil {
		a.log.WithError(err).WithField("owner", ownerID).Warn("note source unavailable")
		return NoNotes
	}
	return renderNotes(notes)
}
