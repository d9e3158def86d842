package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/internal/testutil"
)

func fillRoster(t *testing.T, r *Roster[uint64], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		idx, err := r.Append(uint64(i))
		require.NoError(t, err)
		require.Equal(t, uint64(i), idx)
	}
}

func TestProcessBatchVisitsEachEntryOnce(t *testing.T) {
	for _, tc := range []struct{ size, batch int }{
		{0, 5}, {1, 1}, {10, 3}, {64, 64}, {100, 7}, {257, 256}, {1000, 1},
	} {
		t.Run(fmt.Sprintf("n=%d/max=%d", tc.size, tc.batch), func(t *testing.T) {
			store := NewStore(testutil.NewStateDB())
			r := NewRoster[uint64](store, "test")
			fillRoster(t, r, tc.size)

			cur := &Cursor{}
			cur.Begin(7, uint64(tc.size))
			seen := make([]int, tc.size)
			calls := 0
			for {
				n, done, err := ProcessBatch(r, cur, tc.batch, func(i uint64, item uint64) error {
					assert.Equal(t, i, item)
					seen[item]++
					return nil
				})
				require.NoError(t, err)
				calls++
				assert.LessOrEqual(t, n, tc.batch)
				assert.Equal(t, cur.Position == uint64(tc.size), done)
				if done {
					break
				}
				require.Less(t, calls, tc.size+2)
			}
			for i, c := range seen {
				assert.Equal(t, 1, c, "entry %d", i)
			}
			n, done, err := ProcessBatch(r, cur, tc.batch, func(uint64, uint64) error {
				t.Fatal("visited after completion")
				return nil
			})
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.True(t, done)
		})
	}
}

func TestProcessBatchStopsOnVisitError(t *testing.T) {
	store := NewStore(testutil.NewStateDB())
	r := NewRoster[uint64](store, "test")
	fillRoster(t, r, 10)
	cur := &Cursor{}
	cur.Begin(1, 10)

	boom := errors.New("boom")
	n, done, err := ProcessBatch(r, cur, 10, func(i uint64, _ uint64) error {
		if i == 4 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, n)
	assert.False(t, done)
	assert.Equal(t, uint64(4), cur.Position, "failing entry is not marked processed")
}

func TestCursorBegin(t *testing.T) {
	cur := &Cursor{}
	cur.Begin(3, 10)
	cur.Position = 6

	cur.Begin(3, 10)
	assert.Equal(t, uint64(6), cur.Position, "same roster resumes")

	cur.Begin(4, 2)
	assert.Equal(t, uint64(0), cur.Position, "new marker restarts")
	assert.Equal(t, uint64(2), cur.Remaining())
}

func TestCursorExtend(t *testing.T) {
	cur := &Cursor{}
	cur.Extend(5)
	cur.Position = 5
	assert.True(t, cur.Done())

	cur.Extend(3)
	assert.Equal(t, uint64(5), cur.Length)
	cur.Extend(8)
	assert.False(t, cur.Done())
	assert.Equal(t, uint64(3), cur.Remaining())
}

func TestRosterMissingEntryIsFatal(t *testing.T) {
	store := NewStore(testutil.NewStateDB())
	r := NewRoster[uint64](store, "gap")
	_, err := r.At(0)
	assert.True(t, IsFatal(err))
}
