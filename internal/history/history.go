// Package history keeps a linear undo/redo log of snapshots.
package history

// History is a cursor over committed snapshots. Committing after an undo
// drops everything past the cursor. It is not safe for concurrent use.
type History[T any] struct {
	entries []T
	cursor  int
}

// New returns an empty history (cursor -1).
func New[T any]() *History[T] {
	return &History[T]{cursor: -1}
}

// NewWith returns a history holding initial as its only entry.
func NewWith[T any](initial T) *History[T] {
	return &History[T]{entries: []T{initial}, cursor: 0}
}

// Commit appends snapshot after the cursor and makes it current.
func (h *History[T]) Commit(snapshot T) {
	h.entries = append(h.entries[:h.cursor+1:h.cursor+1], snapshot)
	h.cursor++
}

func (h *History[T]) CanUndo() bool { return h.cursor >= 0 }

func (h *History[T]) CanRedo() bool { return h.cursor < len(h.entries)-1 }

// Undo returns the entry at the cursor and then steps the cursor back.
// The first undo after a commit therefore yields the snapshot just
// committed; callers that want the previous state undo twice.
func (h *History[T]) Undo() (T, bool) {
	var zero T
	if !h.CanUndo() {
		return zero, false
	}
	snap := h.entries[h.cursor]
	h.cursor--
	return snap, true
}

// Redo steps the cursor forward and returns the entry there.
func (h *History[T]) Redo() (T, bool) {
	var zero T
	if !h.CanRedo() {
		return zero, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Current is the entry at the cursor.
func (h *History[T]) Current() (T, bool) {
	var zero T
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return zero, false
	}
	return h.entries[h.cursor], true
}

func (h *History[T]) Len() int { return len(h.entries) }

func (h *History[T]) Cursor() int { return h.cursor }

// Reset discards every entry and starts over from initial.
func (h *History[T]) Reset(initial T) {
	h.entries = []T{initial}
	h.cursor = 0
}
