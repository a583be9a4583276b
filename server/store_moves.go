package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Shift application for the ordered sibling groups. Every mutation that
// touches positions runs under the group's mutex and inside a transaction;
// the affected entity's own row is written after all sibling shifts so a
// failure mid-sequence cannot leave the entity pointing at a colliding slot.
//
// The handler's view of an entity predates the lock, so position and list_id
// are always re-read inside the transaction. Card operations additionally
// verify the re-read list against the locked group key and re-acquire when a
// concurrent cross-list move won the window.

func applyShifts(ctx context.Context, tx *sql.Tx, table, parentCol string, parentID int64, shifts []posShift) error {
	for _, sh := range shifts {
		var err error
		if sh.hi == posOpenEnd {
			_, err = tx.ExecContext(ctx,
				`update `+table+` set position = position + $1 where `+parentCol+`=$2 and position >= $3`,
				sh.delta, parentID, sh.lo)
		} else {
			_, err = tx.ExecContext(ctx,
				`update `+table+` set position = position + $1 where `+parentCol+`=$2 and position >= $3 and position <= $4`,
				sh.delta, parentID, sh.lo, sh.hi)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) listCount(ctx context.Context, q rowQuerier, boardID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `select count(*) from lists where board_id=$1`, boardID).Scan(&n)
	return n, err
}

func (s *Store) cardCount(ctx context.Context, q rowQuerier, listID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `select count(*) from cards where list_id=$1`, listID).Scan(&n)
	return n, err
}

// CreateList appends a list at the end of its board's group.
func (s *Store) CreateList(ctx context.Context, boardID int64, title string) (List, error) {
	unlock := lockGroups(listGroupKey(boardID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return List{}, err
	}
	defer func() { _ = tx.Rollback() }()
	count, err := s.listCount(ctx, tx, boardID)
	if err != nil {
		return List{}, err
	}
	var l List
	err = tx.QueryRowContext(ctx,
		`insert into lists(board_id, title, position) values($1,$2,$3)
		 returning id, board_id, title, position, created_at`,
		boardID, title, appendPos(count)).
		Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt)
	if err != nil {
		return List{}, err
	}
	return l, tx.Commit()
}

// DeleteList removes the list (its cards cascade) and renumbers the board's
// remaining lists so positions stay contiguous. Lists never change boards,
// so the lock key from the handler's read is stable; its position is not and
// gets re-read under the lock.
func (s *Store) DeleteList(ctx context.Context, list List) error {
	unlock := lockGroups(listGroupKey(list.BoardID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	count, err := s.listCount(ctx, tx, list.BoardID)
	if err != nil {
		return err
	}
	var pos int64
	if err := tx.QueryRowContext(ctx, `select position from lists where id=$1`, list.ID).Scan(&pos); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiErr(errNotFound, codeListNotFound, "list not found")
		}
		return err
	}
	shifts, err := deleteShifts(count, pos)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from lists where id=$1`, list.ID); err != nil {
		return err
	}
	if err := applyShifts(ctx, tx, "lists", "board_id", list.BoardID, shifts); err != nil {
		return err
	}
	return tx.Commit()
}

// MoveList reorders a list within its board.
func (s *Store) MoveList(ctx context.Context, list List, to int64) (List, error) {
	unlock := lockGroups(listGroupKey(list.BoardID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return List{}, err
	}
	defer func() { _ = tx.Rollback() }()
	count, err := s.listCount(ctx, tx, list.BoardID)
	if err != nil {
		return List{}, err
	}
	// Re-read under the lock; the position the handler saw may be stale.
	var from int64
	if err := tx.QueryRowContext(ctx, `select position from lists where id=$1`, list.ID).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return List{}, apiErr(errNotFound, codeListNotFound, "list not found")
		}
		return List{}, err
	}
	shifts, err := moveWithinShifts(count, from, to)
	if err != nil {
		return List{}, err
	}
	if len(shifts) == 0 {
		// true no-op: no writes at all
		_ = tx.Rollback()
		return s.GetList(ctx, list.ID)
	}
	if err := applyShifts(ctx, tx, "lists", "board_id", list.BoardID, shifts); err != nil {
		return List{}, err
	}
	if _, err := tx.ExecContext(ctx, `update lists set position=$1 where id=$2`, to, list.ID); err != nil {
		return List{}, err
	}
	if err := tx.Commit(); err != nil {
		return List{}, err
	}
	return s.GetList(ctx, list.ID)
}

// CreateCard appends a card at the end of its list's group.
func (s *Store) CreateCard(ctx context.Context, listID int64, title, description string, priority Priority, labels []string) (Card, error) {
	unlock := lockGroups(cardGroupKey(listID))
	defer unlock()

	if labels == nil {
		labels = []string{}
	}
	labelData, err := json.Marshal(labels)
	if err != nil {
		return Card{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Card{}, err
	}
	defer func() { _ = tx.Rollback() }()
	count, err := s.cardCount(ctx, tx, listID)
	if err != nil {
		return Card{}, err
	}
	c, err := scanCard(tx.QueryRowContext(ctx,
		`insert into cards(list_id, title, description, position, priority, labels)
		 values($1,$2,$3,$4,$5,$6)
		 returning `+cardCols,
		listID, title, description, appendPos(count), string(priority), labelData))
	if err != nil {
		return Card{}, err
	}
	return c, tx.Commit()
}

// DeleteCard removes the card and renumbers its list's remaining cards. The
// card's list and position are re-read under the lock; when a concurrent
// cross-list move has changed its list, the lock is re-acquired for the list
// the card actually sits in.
func (s *Store) DeleteCard(ctx context.Context, card Card) error {
	listID := card.ListID
	for {
		unlock := lockGroups(cardGroupKey(listID))
		retry, err := s.deleteCardLocked(ctx, card.ID, &listID)
		unlock()
		if !retry {
			return err
		}
	}
}

func (s *Store) deleteCardLocked(ctx context.Context, cardID int64, listID *int64) (retry bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var pos, actual int64
	if err := tx.QueryRowContext(ctx, `select position, list_id from cards where id=$1`, cardID).
		Scan(&pos, &actual); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apiErr(errNotFound, codeCardNotFound, "card not found")
		}
		return false, err
	}
	if actual != *listID {
		// locked the wrong group; caller retries with the current list
		*listID = actual
		return true, nil
	}
	count, err := s.cardCount(ctx, tx, actual)
	if err != nil {
		return false, err
	}
	shifts, err := deleteShifts(count, pos)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `delete from cards where id=$1`, cardID); err != nil {
		return false, err
	}
	if err := applyShifts(ctx, tx, "cards", "list_id", actual, shifts); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// MoveCard repositions a card, either within its list or into another one.
// Both groups' shifts and the card's own row change in one transaction. The
// source list is re-read under the lock and the lock re-acquired when it no
// longer matches the handler's read.
func (s *Store) MoveCard(ctx context.Context, card Card, targetListID, to int64) (Card, error) {
	srcListID := card.ListID
	for {
		unlock := lockGroups(cardGroupKey(srcListID), cardGroupKey(targetListID))
		c, retry, err := s.moveCardLocked(ctx, card.ID, &srcListID, targetListID, to)
		unlock()
		if !retry {
			return c, err
		}
	}
}

func (s *Store) moveCardLocked(ctx context.Context, cardID int64, srcListID *int64, targetListID, to int64) (c Card, retry bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Card{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var from, srcList int64
	if err := tx.QueryRowContext(ctx, `select position, list_id from cards where id=$1`, cardID).
		Scan(&from, &srcList); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Card{}, false, apiErr(errNotFound, codeCardNotFound, "card not found")
		}
		return Card{}, false, err
	}
	if srcList != *srcListID {
		*srcListID = srcList
		return Card{}, true, nil
	}
	srcCount, err := s.cardCount(ctx, tx, srcList)
	if err != nil {
		return Card{}, false, err
	}

	if targetListID == srcList {
		shifts, err := moveWithinShifts(srcCount, from, to)
		if err != nil {
			return Card{}, false, err
		}
		if len(shifts) == 0 {
			_ = tx.Rollback()
			c, err := s.GetCard(ctx, cardID)
			return c, false, err
		}
		if err := applyShifts(ctx, tx, "cards", "list_id", srcList, shifts); err != nil {
			return Card{}, false, err
		}
		if _, err := tx.ExecContext(ctx, `update cards set position=$1 where id=$2`, to, cardID); err != nil {
			return Card{}, false, err
		}
	} else {
		dstCount, err := s.cardCount(ctx, tx, targetListID)
		if err != nil {
			return Card{}, false, err
		}
		srcShifts, dstShifts, err := moveAcrossShifts(srcCount, from, dstCount, to)
		if err != nil {
			return Card{}, false, err
		}
		if err := applyShifts(ctx, tx, "cards", "list_id", srcList, srcShifts); err != nil {
			return Card{}, false, err
		}
		if err := applyShifts(ctx, tx, "cards", "list_id", targetListID, dstShifts); err != nil {
			return Card{}, false, err
		}
		if _, err := tx.ExecContext(ctx,
			`update cards set list_id=$1, position=$2 where id=$3`, targetListID, to, cardID); err != nil {
			return Card{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Card{}, false, err
	}
	c, err = s.GetCard(ctx, cardID)
	return c, false, err
}
