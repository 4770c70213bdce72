package cyclelog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cycles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, text := range []string{"Initial balance: $10,000.00", "BUY 0.5 BTC", "Total profit: $5,220.90"} {
		require.NoError(t, s.AppendLine(ctx, "cycle-1", i, text))
	}
	// Re-appending an existing (cycle, seq) is a no-op.
	require.NoError(t, s.AppendLine(ctx, "cycle-1", 0, "different text"))

	lines, err := s.LinesForCycle(ctx, "cycle-1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "Initial balance: $10,000.00", lines[0].Text)
	assert.Equal(t, 2, lines[2].Seq)
}

func TestRecentCyclesSummarizes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLine(ctx, "old", 0, "a"))
	require.NoError(t, s.AppendLine(ctx, "new", 0, "b"))
	require.NoError(t, s.AppendLine(ctx, "new", 1, "c"))

	cycles, err := s.RecentCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	for _, c := range cycles {
		if c.CycleID == "new" {
			assert.Equal(t, 2, c.LineCount)
		}
	}
}

func TestUnknownCycleIsEmpty(t *testing.T) {
	s := newTestStore(t)
	lines, err := s.LinesForCycle(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClosedStoreErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	err := s.AppendLine(context.Background(), "c", 0, "x")
	assert.Error(t, err)
}
