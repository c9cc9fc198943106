package progress

import (
	"context"
	"sync"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
)

// SessionSource yields the live session the tracker follows.
// *session.Locator implements it.
type SessionSource interface {
	Session() *models.Session
	Updates() <-chan struct{}
}

// Tracker follows the live session and keeps the progress index for the
// current trainee. The index is rebuilt only when the trainee changes; mid
// workout edits never disturb the baseline, so a set logged on the live
// workout can not become its own comparison point.
type Tracker struct {
	builder *Builder
	source  SessionSource

	mu      sync.Mutex
	current *Index
}

func NewTracker(builder *Builder, source SessionSource) *Tracker {
	return &Tracker{builder: builder, source: source}
}

// Current returns the index for the active trainee, or nil when no session
// is live. Callers treat the returned index as read-only.
func (t *Tracker) Current() *Index {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Run follows session updates and rebuilds the index on trainee changes.
func (t *Tracker) Run(ctx context.Context) {
	updates := t.source.Updates()
	t.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			t.sync(ctx)
		}
	}
}

func (t *Tracker) sync(ctx context.Context) {
	s := t.source.Session()

	var traineeID uuid.UUID
	if s != nil && s.Trainee != nil {
		traineeID = s.Trainee.ID
	}

	t.mu.Lock()
	currentID := uuid.Nil
	if t.current != nil {
		currentID = t.current.TraineeID
	}
	t.mu.Unlock()

	if traineeID == currentID {
		return
	}

	var idx *Index
	if traineeID != uuid.Nil {
		idx = t.builder.Build(ctx, traineeID)
	}

	t.mu.Lock()
	t.current = idx
	t.mu.Unlock()
}
