package main

import (
	"context"
	"slices"
)

// Board access is a capability check over a loaded board and its membership
// set. The creator and the membership list are checked as two explicit
// predicates: membership rows are not guaranteed to contain the creator.

func isBoardOwner(b Board, userID int64) bool { return b.CreatedBy == userID }

func canAccessBoard(b Board, memberIDs []int64, userID int64) bool {
	return isBoardOwner(b, userID) || slices.Contains(memberIDs, userID)
}

// boardGetter is what the guard needs from the store.
type boardGetter interface {
	GetBoard(ctx context.Context, id int64) (Board, error)
}

// authorizeBoard loads the board and enforces access. Existence is resolved
// first: a missing board is NotFound for everyone, an existing board the
// caller may not touch is AccessDenied. needOwner restricts to the creator.
func authorizeBoard(ctx context.Context, store boardGetter, boardID, userID int64, needOwner bool) (Board, error) {
	b, err := store.GetBoard(ctx, boardID)
	if err != nil {
		return Board{}, err
	}
	if needOwner {
		if !isBoardOwner(b, userID) {
			return Board{}, apiErr(errAccessDenied, codeAccessDenied, "only the board creator can do this")
		}
		return b, nil
	}
	if !canAccessBoard(b, b.Members, userID) {
		return Board{}, apiErr(errAccessDenied, codeAccessDenied, "access denied")
	}
	return b, nil
}

func (a *api) authorizeBoard(ctx context.Context, boardID, userID int64, needOwner bool) (Board, error) {
	return authorizeBoard(ctx, a.store, boardID, userID, needOwner)
}

// authorizeList resolves a list and checks access on its board.
func (a *api) authorizeList(ctx context.Context, listID, userID int64, needOwner bool) (List, Board, error) {
	l, err := a.store.GetList(ctx, listID)
	if err != nil {
		return List{}, Board{}, err
	}
	b, err := a.authorizeBoard(ctx, l.BoardID, userID, needOwner)
	if err != nil {
		return List{}, Board{}, err
	}
	return l, b, nil
}

// authorizeCard resolves a card through its list up to the board.
func (a *api) authorizeCard(ctx context.Context, cardID, userID int64) (Card, List, Board, error) {
	c, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return Card{}, List{}, Board{}, err
	}
	l, b, err := a.authorizeList(ctx, c.ListID, userID, false)
	if err != nil {
		return Card{}, List{}, Board{}, err
	}
	return c, l, b, nil
}
