package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardOwnership(t *testing.T) {
	b := Board{ID: 1, CreatedBy: 10}
	assert.True(t, isBoardOwner(b, 10))
	assert.False(t, isBoardOwner(b, 11))
}

func TestCanAccessBoard(t *testing.T) {
	b := Board{ID: 1, CreatedBy: 10}

	// The creator gets in even when the membership rows do not list them.
	assert.True(t, canAccessBoard(b, nil, 10))
	assert.True(t, canAccessBoard(b, []int64{11, 12}, 10))

	assert.True(t, canAccessBoard(b, []int64{11, 12}, 11))
	assert.False(t, canAccessBoard(b, []int64{11, 12}, 13))
	assert.False(t, canAccessBoard(b, nil, 13))
}

func TestMembershipDoesNotConferOwnership(t *testing.T) {
	b := Board{ID: 1, CreatedBy: 10}
	members := []int64{10, 11}

	assert.True(t, canAccessBoard(b, members, 11))
	assert.False(t, isBoardOwner(b, 11), "members may read, only the creator owns")
}

type fakeBoardStore map[int64]Board

func (f fakeBoardStore) GetBoard(_ context.Context, id int64) (Board, error) {
	b, ok := f[id]
	if !ok {
		return Board{}, apiErr(errNotFound, codeBoardNotFound, "board not found")
	}
	return b, nil
}

func TestAuthorizeBoardResolvesExistenceFirst(t *testing.T) {
	ctx := context.Background()
	store := fakeBoardStore{1: {ID: 1, CreatedBy: 10, Members: []int64{10, 11}}}

	// A missing board is NotFound for everyone, stranger and would-be member alike.
	for _, userID := range []int64{10, 13} {
		_, err := authorizeBoard(ctx, store, 2, userID, false)
		require.Error(t, err)
		assert.Equal(t, codeBoardNotFound, errCode(err))
		assert.Equal(t, http.StatusNotFound, errStatus(err))
	}

	// An existing board the caller may not touch is denied, not hidden.
	_, err := authorizeBoard(ctx, store, 1, 13, false)
	require.Error(t, err)
	assert.Equal(t, codeAccessDenied, errCode(err))
	assert.Equal(t, http.StatusForbidden, errStatus(err))

	b, err := authorizeBoard(ctx, store, 1, 11, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
}

func TestAuthorizeBoardOwnerGate(t *testing.T) {
	ctx := context.Background()
	store := fakeBoardStore{1: {ID: 1, CreatedBy: 10, Members: []int64{10, 11}}}

	_, err := authorizeBoard(ctx, store, 1, 11, true)
	require.Error(t, err, "membership is not ownership")
	assert.Equal(t, codeAccessDenied, errCode(err))

	b, err := authorizeBoard(ctx, store, 1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.CreatedBy)
}
