package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Positions within a sibling group (the lists of one board, the cards of one
// list) are dense zero-based integers: at rest they are exactly {0..n-1}.
// The functions below plan the minimal set of range shifts an insert, delete
// or move needs to keep that true. They are pure; the store applies the plan
// inside a transaction, writing the moved entity's own row last.

// posShift adjusts every sibling whose position falls in [lo, hi] by delta.
// hi == posOpenEnd means no upper bound.
type posShift struct {
	lo, hi int64
	delta  int64
}

const posOpenEnd = int64(-1)

func errPosition(msg string) error {
	return goerr.Wrap(errValidation, msg, goerr.V("code", codeInvalidPosition), goerr.V("message", msg))
}

// appendPos returns the position a new sibling takes when created without an
// explicit position: the end of the group. No existing sibling shifts.
func appendPos(count int64) int64 { return count }

// deleteShifts closes the gap left at removed. The caller has just read the
// removed entity's position from the same group, so an out-of-range value
// means the group is already inconsistent.
func deleteShifts(count, removed int64) ([]posShift, error) {
	if removed < 0 || removed >= count {
		return nil, errPosition(fmt.Sprintf("removed position %d out of range [0,%d)", removed, count))
	}
	return []posShift{{lo: removed + 1, hi: posOpenEnd, delta: -1}}, nil
}

// moveWithinShifts plans a reorder inside one group. Only the run between the
// old and new slot moves, by exactly one. from == to is a verified no-op:
// the returned plan is empty and the caller must issue no writes.
func moveWithinShifts(count, from, to int64) ([]posShift, error) {
	if from < 0 || from >= count {
		return nil, errPosition(fmt.Sprintf("source position %d out of range [0,%d)", from, count))
	}
	if to < 0 || to >= count {
		return nil, errPosition(fmt.Sprintf("target position %d out of range [0,%d)", to, count))
	}
	switch {
	case to > from:
		return []posShift{{lo: from + 1, hi: to, delta: -1}}, nil
	case to < from:
		return []posShift{{lo: to, hi: from - 1, delta: 1}}, nil
	}
	return nil, nil
}

// moveAcrossShifts plans a transfer between two groups: a delete-style gap
// close on the source and an insertion shift on the destination. Insertion at
// dstCount (the end) is legal. Both plans must be applied for the invariant
// to hold on each group.
func moveAcrossShifts(srcCount, from, dstCount, to int64) (src, dst []posShift, err error) {
	src, err = deleteShifts(srcCount, from)
	if err != nil {
		return nil, nil, err
	}
	if to < 0 || to > dstCount {
		return nil, nil, errPosition(fmt.Sprintf("target position %d out of range [0,%d]", to, dstCount))
	}
	dst = []posShift{{lo: to, hi: posOpenEnd, delta: 1}}
	return src, dst, nil
}

// --- per-group serialization ---

// The read-plan-write sequence of a move is not atomic at the SQL level, so
// concurrent moves on the same sibling group could interleave their shift
// writes. Each group gets a named mutex held for the whole operation.

type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var posLocks = &groupLocks{locks: map[string]*sync.Mutex{}}

func (g *groupLocks) get(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.locks[key]
	if !ok {
		m = &sync.Mutex{}
		g.locks[key] = m
	}
	return m
}

// lockGroups acquires the mutexes for the given group keys in sorted order
// (cross-list moves touch two groups; sorting avoids lock-order inversion)
// and returns the matching unlock.
func lockGroups(keys ...string) (unlock func()) {
	uniq := map[string]struct{}{}
	var order []string
	for _, k := range keys {
		if _, ok := uniq[k]; !ok {
			uniq[k] = struct{}{}
			order = append(order, k)
		}
	}
	sort.Strings(order)
	var held []*sync.Mutex
	for _, k := range order {
		m := posLocks.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func listGroupKey(boardID int64) string { return fmt.Sprintf("lists:%d", boardID) }
func cardGroupKey(listID int64) string  { return fmt.Sprintf("cards:%d", listID) }
