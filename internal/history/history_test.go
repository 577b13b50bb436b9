package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsEmpty(t *testing.T) {
	h := New[string]()
	assert.Equal(t, -1, h.Cursor())
	assert.Zero(t, h.Len())
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, ok := h.Undo()
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
	_, ok = h.Current()
	assert.False(t, ok)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := NewWith("S0")
	h.Commit("S1")
	h.Commit("S2")

	undone, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, "S2", undone, "undo yields the entry at the cursor before stepping back")
	assert.Equal(t, 1, h.Cursor())

	redone, ok := h.Redo()
	require.True(t, ok)
	assert.Equal(t, "S2", redone)
	cur, _ := h.Current()
	assert.Equal(t, "S2", cur)
	assert.False(t, h.CanRedo())
}

func TestUndoWalksBackToEmpty(t *testing.T) {
	h := NewWith(0)
	h.Commit(1)

	var got []int
	for h.CanUndo() {
		v, _ := h.Undo()
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 0}, got)
	assert.Equal(t, -1, h.Cursor())

	v, ok := h.Redo()
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestCommitDropsRedoBranch(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k <= n; k++ {
			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				h := New[int]()
				for i := 1; i <= n; i++ {
					h.Commit(i)
				}
				for i := 0; i < k; i++ {
					_, ok := h.Undo()
					require.True(t, ok)
				}
				h.Commit(100)

				assert.Equal(t, n-k+1, h.Len())
				assert.False(t, h.CanRedo())
				_, ok := h.Redo()
				assert.False(t, ok)

				cur, _ := h.Current()
				assert.Equal(t, 100, cur)
				for h.CanUndo() {
					v, _ := h.Undo()
					assert.LessOrEqual(t, v, 100)
					if v != 100 {
						assert.LessOrEqual(t, v, n-k, "discarded entries must be unreachable")
					}
				}
			})
		}
	}
}

func TestCommitDoesNotAliasDiscardedEntries(t *testing.T) {
	h := NewWith("a")
	h.Commit("b")
	h.Commit("c")
	h.Undo()
	h.Undo()
	h.Commit("x")

	assert.Equal(t, 2, h.Len())
	h.Undo()
	v, _ := h.Undo()
	assert.Equal(t, "a", v)
}

func TestReset(t *testing.T) {
	h := NewWith(1)
	h.Commit(2)
	h.Reset(9)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Cursor())
	cur, _ := h.Current()
	assert.Equal(t, 9, cur)
}
