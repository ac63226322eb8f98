// Package progress tracks which chunks of a document have been translated.
// Every change is persisted before it is acknowledged, so an interrupted run
// resumes exactly where it stopped.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valpere/novtran/internal/store"
)

// Backend persists progress records. *store.Store satisfies it.
type Backend interface {
	LoadProgress(ctx context.Context, documentID string) (*store.ProgressRecord, bool, error)
	SaveProgress(ctx context.Context, rec store.ProgressRecord) error
	DeleteProgress(ctx context.Context, documentID string) (bool, error)
}

type Ledger struct {
	mu         sync.Mutex
	backend    Backend
	documentID string
	completed  map[int]struct{}
	total      int
	last       int
	startedAt  time.Time
	updatedAt  time.Time
	now        func() time.Time
}

// Summary is a point-in-time view of a ledger. Counts are derived from the
// completed set.
type Summary struct {
	DocumentID string
	Completed  int
	Total      int
	Remaining  int
	LastChunk  int
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Open loads the ledger for documentID, starting empty when no record exists.
func Open(ctx context.Context, b Backend, documentID string) (*Ledger, error) {
	l := &Ledger{
		backend:    b,
		documentID: documentID,
		completed:  make(map[int]struct{}),
		now:        time.Now,
	}

	rec, ok, err := b.LoadProgress(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", documentID, err)
	}
	if !ok {
		l.startedAt = l.now()
		return l, nil
	}

	for _, i := range rec.Completed {
		l.completed[i] = struct{}{}
	}
	l.total = rec.TotalChunks
	l.last = rec.LastChunk
	l.startedAt = rec.StartedAt
	l.updatedAt = rec.UpdatedAt
	return l, nil
}

func (l *Ledger) DocumentID() string {
	return l.documentID
}

func (l *Ledger) IsCompleted(index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completed[index]
	return ok
}

// MarkCompleted records index as done and persists the ledger. Marking a
// completed chunk again (a forced retranslation) moves LastChunk to it. If
// the write fails the in-memory state is left as it was.
func (l *Ledger) MarkCompleted(ctx context.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, already := l.completed[index]
	prevLast, prevUpdated := l.last, l.updatedAt
	l.completed[index] = struct{}{}
	l.last = index
	l.updatedAt = l.now()

	if err := l.saveLocked(ctx); err != nil {
		if !already {
			delete(l.completed, index)
		}
		l.last, l.updatedAt = prevLast, prevUpdated
		return fmt.Errorf("persist progress for %s chunk %d: %w", l.documentID, index, err)
	}
	return nil
}

// SetTotal records the number of chunks the document has.
func (l *Ledger) SetTotal(ctx context.Context, total int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if total == l.total {
		return nil
	}
	prev := l.total
	l.total = total
	if err := l.saveLocked(ctx); err != nil {
		l.total = prev
		return err
	}
	return nil
}

// Completed returns the completed indices in ascending order.
func (l *Ledger) Completed() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Reset deletes the persisted record and clears the ledger.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.backend.DeleteProgress(ctx, l.documentID); err != nil {
		return fmt.Errorf("reset progress for %s: %w", l.documentID, err)
	}
	l.completed = make(map[int]struct{})
	l.last = 0
	l.startedAt = l.now()
	l.updatedAt = time.Time{}
	return nil
}

func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		DocumentID: l.documentID,
		Completed:  len(l.completed),
		Total:      l.total,
		LastChunk:  l.last,
		StartedAt:  l.startedAt,
		UpdatedAt:  l.updatedAt,
	}
	if s.Total > s.Completed {
		s.Remaining = s.Total - s.Completed
	}
	return s
}

func (l *Ledger) saveLocked(ctx context.Context) error {
	return l.backend.SaveProgress(ctx, store.ProgressRecord{
		DocumentID:  l.documentID,
		Completed:   l.sortedLocked(),
		TotalChunks: l.total,
		LastChunk:   l.last,
		StartedAt:   l.startedAt,
		UpdatedAt:   l.updatedAt,
	})
}

func (l *Ledger) sortedLocked() []int {
	out := make([]int, 0, len(l.completed))
	for i := range l.completed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
