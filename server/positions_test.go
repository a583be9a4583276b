package main

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests drive the shift planners against an in-memory model of a sibling
// group: a set of items with explicit positions, shifted exactly the way the
// store's SQL would shift them, with the moved item's own row written last.

type posItem struct {
	id  string
	pos int64
}

func newGroup(ids ...string) []posItem {
	out := make([]posItem, len(ids))
	for i, id := range ids {
		out[i] = posItem{id: id, pos: int64(i)}
	}
	return out
}

func applyPlan(items []posItem, shifts []posShift) []posItem {
	for _, sh := range shifts {
		for i := range items {
			if items[i].pos >= sh.lo && (sh.hi == posOpenEnd || items[i].pos <= sh.hi) {
				items[i].pos += sh.delta
			}
		}
	}
	return items
}

// orderOf asserts positions are exactly {0..n-1} and returns ids position order.
func orderOf(t *testing.T, items []posItem) []string {
	t.Helper()
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b posItem) int { return int(a.pos - b.pos) })
	out := make([]string, len(sorted))
	for i, it := range sorted {
		require.Equal(t, int64(i), it.pos, "positions must be dense zero-based, got %+v", sorted)
		out[i] = it.id
	}
	return out
}

func removeItem(items []posItem, id string) ([]posItem, posItem) {
	for i, it := range items {
		if it.id == id {
			return slices.Delete(slices.Clone(items), i, i+1), it
		}
	}
	panic("unknown item " + id)
}

func TestAppendPos(t *testing.T) {
	assert.Equal(t, int64(0), appendPos(0))
	assert.Equal(t, int64(3), appendPos(3))
}

func TestDeleteShiftsClosesGap(t *testing.T) {
	g := newGroup("a", "b", "c", "d")
	rest, removed := removeItem(g, "b")
	shifts, err := deleteShifts(int64(len(g)), removed.pos)
	require.NoError(t, err)
	rest = applyPlan(rest, shifts)
	assert.Equal(t, []string{"a", "c", "d"}, orderOf(t, rest))
}

func TestDeleteShiftsLastItemNoOpRange(t *testing.T) {
	g := newGroup("a", "b", "c")
	rest, removed := removeItem(g, "c")
	shifts, err := deleteShifts(int64(len(g)), removed.pos)
	require.NoError(t, err)
	// The open-ended shift matches nothing when the last item goes.
	rest = applyPlan(rest, shifts)
	assert.Equal(t, []string{"a", "b"}, orderOf(t, rest))
}

func TestDeleteShiftsOutOfRange(t *testing.T) {
	_, err := deleteShifts(3, 3)
	require.Error(t, err)
	assert.Equal(t, codeInvalidPosition, errCode(err))
	assert.Equal(t, 400, errStatus(err))

	_, err = deleteShifts(3, -1)
	require.Error(t, err)
}

func TestMoveWithinForward(t *testing.T) {
	// 1 -> 3 in a group of five: only the run (1,3] moves, down by one.
	g := newGroup("a", "b", "c", "d", "e")
	shifts, err := moveWithinShifts(5, 1, 3)
	require.NoError(t, err)
	g = applyPlan(g, shifts)
	g[1].pos = 3 // moved item written last
	assert.Equal(t, []string{"a", "c", "d", "b", "e"}, orderOf(t, g))
}

func TestMoveWithinBackward(t *testing.T) {
	g := newGroup("a", "b", "c", "d", "e")
	shifts, err := moveWithinShifts(5, 3, 1)
	require.NoError(t, err)
	g = applyPlan(g, shifts)
	g[3].pos = 1
	assert.Equal(t, []string{"a", "d", "b", "c", "e"}, orderOf(t, g))
}

func TestMoveWithinNoOp(t *testing.T) {
	shifts, err := moveWithinShifts(4, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, shifts, "same-slot move must plan zero writes")
}

func TestMoveWithinFirstToLast(t *testing.T) {
	g := newGroup("a", "b", "c")
	shifts, err := moveWithinShifts(3, 0, 2)
	require.NoError(t, err)
	g = applyPlan(g, shifts)
	g[0].pos = 2
	assert.Equal(t, []string{"b", "c", "a"}, orderOf(t, g))
}

func TestMoveWithinOutOfRange(t *testing.T) {
	for _, tc := range [][2]int64{{-1, 0}, {3, 0}, {0, -1}, {0, 3}} {
		_, err := moveWithinShifts(3, tc[0], tc[1])
		require.Error(t, err, "from=%d to=%d", tc[0], tc[1])
		assert.Equal(t, codeInvalidPosition, errCode(err))
	}
}

func TestDeletePlansFromRereadPosition(t *testing.T) {
	// A reorder committing between an item being loaded and deleted must not
	// skew the gap close: the plan is built from the position current at
	// delete time, not the loader's stale one.
	g := newGroup("a", "b", "c", "d")
	shifts, err := moveWithinShifts(4, 2, 0) // c to the front
	require.NoError(t, err)
	g = applyPlan(g, shifts)
	g[2].pos = 0

	rest, removed := removeItem(g, "c")
	require.Equal(t, int64(0), removed.pos)
	shifts, err = deleteShifts(4, removed.pos)
	require.NoError(t, err)
	rest = applyPlan(rest, shifts)
	assert.Equal(t, []string{"a", "b", "d"}, orderOf(t, rest))
}

func TestMoveAcross(t *testing.T) {
	src := newGroup("a", "b")
	dst := newGroup("c")

	srcShifts, dstShifts, err := moveAcrossShifts(2, 0, 1, 1)
	require.NoError(t, err)

	rest, moved := removeItem(src, "a")
	rest = applyPlan(rest, srcShifts)
	dst = applyPlan(dst, dstShifts)
	moved.pos = 1
	dst = append(dst, moved)

	assert.Equal(t, []string{"b"}, orderOf(t, rest))
	assert.Equal(t, []string{"c", "a"}, orderOf(t, dst))
}

func TestMoveAcrossEndInsertion(t *testing.T) {
	// Inserting at dstCount is the append slot and must be accepted.
	_, dstShifts, err := moveAcrossShifts(1, 0, 3, 3)
	require.NoError(t, err)
	dst := applyPlan(newGroup("x", "y", "z"), dstShifts)
	assert.Equal(t, []string{"x", "y", "z"}, orderOf(t, dst))

	_, _, err = moveAcrossShifts(1, 0, 3, 4)
	require.Error(t, err)
	assert.Equal(t, codeInvalidPosition, errCode(err))
}

func TestMoveAcrossConservesBothGroups(t *testing.T) {
	src := newGroup("a", "b", "c", "d")
	dst := newGroup("x", "y")

	srcShifts, dstShifts, err := moveAcrossShifts(4, 2, 2, 0)
	require.NoError(t, err)

	rest, moved := removeItem(src, "c")
	rest = applyPlan(rest, srcShifts)
	dst = applyPlan(dst, dstShifts)
	moved.pos = 0
	dst = append(dst, moved)

	assert.Equal(t, []string{"a", "b", "d"}, orderOf(t, rest))
	assert.Equal(t, []string{"c", "x", "y"}, orderOf(t, dst))
	assert.Len(t, append(rest, dst...), 6, "no item created or lost")
}

// Randomized sequences of every operation against a slice-based oracle.
func TestRandomOperationSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 20; run++ {
		oracle := [][]string{{}, {}} // ground truth, plain slice ops
		model := [][]posItem{{}, {}} // driven by the shift planners
		next := 0

		for step := 0; step < 200; step++ {
			g := rng.Intn(2)
			n := int64(len(model[g]))
			op := rng.Intn(4)

			switch {
			case op == 0 || n == 0: // append
				id := fmt.Sprintf("i%d", next)
				next++
				oracle[g] = append(oracle[g], id)
				model[g] = append(model[g], posItem{id: id, pos: appendPos(n)})

			case op == 1: // delete
				i := rng.Int63n(n)
				id := oracle[g][i]
				oracle[g] = slices.Delete(oracle[g], int(i), int(i)+1)
				rest, removed := removeItem(model[g], id)
				shifts, err := deleteShifts(n, removed.pos)
				require.NoError(t, err)
				model[g] = applyPlan(rest, shifts)

			case op == 2: // move within
				from, to := rng.Int63n(n), rng.Int63n(n)
				id := oracle[g][from]
				oracle[g] = slices.Insert(slices.Delete(oracle[g], int(from), int(from)+1), int(to), id)
				shifts, err := moveWithinShifts(n, from, to)
				require.NoError(t, err)
				if len(shifts) == 0 {
					break
				}
				model[g] = applyPlan(model[g], shifts)
				for i := range model[g] {
					if model[g][i].id == id {
						model[g][i].pos = to
					}
				}

			default: // move across
				o := 1 - g
				from := rng.Int63n(n)
				to := rng.Int63n(int64(len(model[o])) + 1)
				id := oracle[g][from]
				oracle[g] = slices.Delete(oracle[g], int(from), int(from)+1)
				oracle[o] = slices.Insert(oracle[o], int(to), id)

				srcShifts, dstShifts, err := moveAcrossShifts(n, from, int64(len(model[o])), to)
				require.NoError(t, err)
				rest, moved := removeItem(model[g], id)
				model[g] = applyPlan(rest, srcShifts)
				model[o] = applyPlan(model[o], dstShifts)
				moved.pos = to
				model[o] = append(model[o], moved)
			}

			for i := 0; i < 2; i++ {
				require.Equal(t, oracle[i], orderOf(t, model[i]),
					"run %d step %d group %d diverged", run, step, i)
			}
		}
	}
}

func TestLockGroupsDeduplicatesAndUnlocks(t *testing.T) {
	// Same key twice must not self-deadlock.
	unlock := lockGroups(cardGroupKey(1), cardGroupKey(1))
	unlock()

	// Opposite acquisition order on two keys must not deadlock either:
	// lockGroups sorts before acquiring.
	done := make(chan struct{})
	go func() {
		u := lockGroups(cardGroupKey(2), cardGroupKey(3))
		u()
		close(done)
	}()
	u := lockGroups(cardGroupKey(3), cardGroupKey(2))
	u()
	<-done
}
