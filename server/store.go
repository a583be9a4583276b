package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Users

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`insert into users(username, password_hash) values($1,$2) returning id, username, created_at`,
		username, passwordHash).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		return User{}, goerr.Wrap(err, "create user")
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`select id, username, created_at from users where id=$1`, id).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apiErr(errNotFound, codeUserNotFound, "user not found")
	}
	return u, err
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from users where username=$1`, username).Scan(&n)
	return n > 0, err
}

// Authenticate verifies the password and returns the user. Unknown user and
// wrong password are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select id, username, created_at, password_hash from users where username=$1`, username).
		Scan(&u.ID, &u.Username, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apiErr(errUnauthenticated, codeInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, apiErr(errUnauthenticated, codeInvalidCredentials, "invalid credentials")
	}
	return u, nil
}

// Boards

func (s *Store) BoardsForUser(ctx context.Context, userID int64) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct b.id, b.title, b.description, b.created_by, b.created_at
		 from boards b left join board_members m on m.board_id = b.id
		 where b.created_by=$1 or m.user_id=$1
		 order by b.created_at desc, b.id desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Board{}
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBoard(ctx context.Context, userID int64, title, description string) (Board, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Board{}, err
	}
	defer func() { _ = tx.Rollback() }()
	var b Board
	err = tx.QueryRowContext(ctx,
		`insert into boards(title, description, created_by) values($1,$2,$3)
		 returning id, title, description, created_by, created_at`,
		title, description, userID).
		Scan(&b.ID, &b.Title, &b.Description, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return Board{}, err
	}
	// The creator is authorized implicitly, but keep a membership row too so
	// member listings include them.
	if _, err = tx.ExecContext(ctx,
		`insert into board_members(board_id, user_id) values($1,$2)`, b.ID, userID); err != nil {
		return Board{}, err
	}
	if err = tx.Commit(); err != nil {
		return Board{}, err
	}
	b.Members = []int64{userID}
	return b, nil
}

func (s *Store) GetBoard(ctx context.Context, id int64) (Board, error) {
	var b Board
	err := s.db.QueryRowContext(ctx,
		`select id, title, description, created_by, created_at from boards where id=$1`, id).
		Scan(&b.ID, &b.Title, &b.Description, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Board{}, apiErr(errNotFound, codeBoardNotFound, "board not found")
	}
	if err != nil {
		return Board{}, err
	}
	b.Members, err = s.BoardMemberIDs(ctx, id)
	return b, err
}

func (s *Store) BoardMemberIDs(ctx context.Context, boardID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id from board_members where board_id=$1 order by user_id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBoard(ctx context.Context, id int64, title, description *string) (Board, error) {
	if title != nil {
		if _, err := s.db.ExecContext(ctx, `update boards set title=$1 where id=$2`, *title, id); err != nil {
			return Board{}, err
		}
	}
	if description != nil {
		if _, err := s.db.ExecContext(ctx, `update boards set description=$1 where id=$2`, *description, id); err != nil {
			return Board{}, err
		}
	}
	return s.GetBoard(ctx, id)
}

// DeleteBoard removes the board; lists, cards, members and activity go with
// it via FK cascades.
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from boards where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apiErr(errNotFound, codeBoardNotFound, "board not found")
	}
	return nil
}

func (s *Store) AddBoardMember(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`insert into board_members(board_id, user_id) values($1,$2) on conflict do nothing`,
		boardID, userID)
	return err
}

func (s *Store) RemoveBoardMember(ctx context.Context, boardID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`delete from board_members where board_id=$1 and user_id=$2`, boardID, userID)
	return err
}

// Lists

func (s *Store) ListsByBoard(ctx context.Context, boardID int64) ([]List, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, board_id, title, position, created_at from lists where board_id=$1 order by position`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []List{}
	for rows.Next() {
		var l List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetList(ctx context.Context, id int64) (List, error) {
	var l List
	err := s.db.QueryRowContext(ctx,
		`select id, board_id, title, position, created_at from lists where id=$1`, id).
		Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return List{}, apiErr(errNotFound, codeListNotFound, "list not found")
	}
	return l, err
}

func (s *Store) UpdateListTitle(ctx context.Context, id int64, title string) (List, error) {
	res, err := s.db.ExecContext(ctx, `update lists set title=$1 where id=$2`, title, id)
	if err != nil {
		return List{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return List{}, apiErr(errNotFound, codeListNotFound, "list not found")
	}
	return s.GetList(ctx, id)
}

// Cards

func scanCard(sc interface{ Scan(...any) error }) (Card, error) {
	var c Card
	var labels []byte
	err := sc.Scan(&c.ID, &c.ListID, &c.Title, &c.Description, &c.Position,
		&c.Priority, &labels, &c.DueAt, &c.CreatedAt)
	if err != nil {
		return Card{}, err
	}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &c.Labels); err != nil {
			return Card{}, goerr.Wrap(err, "decode card labels")
		}
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
	c.AssignedTo = []int64{}
	return c, nil
}

const cardCols = `id, list_id, title, description, position, priority, labels, due_at, created_at`

func (s *Store) CardsByList(ctx context.Context, listID int64) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+cardCols+` from cards where list_id=$1 order by position`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.attachAssignees(ctx, out)
}

// CardsByBoard returns every card on the board in one query, position order,
// for the lists-with-cards endpoint.
func (s *Store) CardsByBoard(ctx context.Context, boardID int64) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`select c.id, c.list_id, c.title, c.description, c.position, c.priority, c.labels, c.due_at, c.created_at
		 from cards c join lists l on l.id = c.list_id
		 where l.board_id=$1 order by c.list_id, c.position`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.attachAssignees(ctx, out)
}

func (s *Store) GetCard(ctx context.Context, id int64) (Card, error) {
	c, err := scanCard(s.db.QueryRowContext(ctx,
		`select `+cardCols+` from cards where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, apiErr(errNotFound, codeCardNotFound, "card not found")
	}
	if err != nil {
		return Card{}, err
	}
	c.AssignedTo, err = s.cardAssignees(ctx, id)
	return c, err
}

func (s *Store) cardAssignees(ctx context.Context, cardID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id from card_assignees where card_id=$1 order by user_id`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) attachAssignees(ctx context.Context, cards []Card) ([]Card, error) {
	if len(cards) == 0 {
		return cards, nil
	}
	byCard := map[int64][]int64{}
	placeholders := make([]string, len(cards))
	args := make([]any, len(cards))
	for i, c := range cards {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.ID
	}
	rows, err := s.db.QueryContext(ctx,
		`select card_id, user_id from card_assignees where card_id in (`+
			strings.Join(placeholders, ",")+`) order by card_id, user_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cardID, userID int64
		if err := rows.Scan(&cardID, &userID); err != nil {
			return nil, err
		}
		byCard[cardID] = append(byCard[cardID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range cards {
		if ids, ok := byCard[cards[i].ID]; ok {
			cards[i].AssignedTo = ids
		}
	}
	return cards, nil
}

type cardUpdate struct {
	Title       *string
	Description *string
	Priority    *Priority
	Labels      []string
	DueAt       *sql.NullTime
	AssignedTo  []int64
}

func (s *Store) UpdateCard(ctx context.Context, id int64, upd cardUpdate) (Card, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Card{}, err
	}
	defer func() { _ = tx.Rollback() }()
	if upd.Title != nil {
		if _, err := tx.ExecContext(ctx, `update cards set title=$1 where id=$2`, *upd.Title, id); err != nil {
			return Card{}, err
		}
	}
	if upd.Description != nil {
		if _, err := tx.ExecContext(ctx, `update cards set description=$1 where id=$2`, *upd.Description, id); err != nil {
			return Card{}, err
		}
	}
	if upd.Priority != nil {
		if _, err := tx.ExecContext(ctx, `update cards set priority=$1 where id=$2`, string(*upd.Priority), id); err != nil {
			return Card{}, err
		}
	}
	if upd.Labels != nil {
		data, err := json.Marshal(upd.Labels)
		if err != nil {
			return Card{}, err
		}
		if _, err := tx.ExecContext(ctx, `update cards set labels=$1 where id=$2`, data, id); err != nil {
			return Card{}, err
		}
	}
	if upd.DueAt != nil {
		if _, err := tx.ExecContext(ctx, `update cards set due_at=$1 where id=$2`, *upd.DueAt, id); err != nil {
			return Card{}, err
		}
	}
	if upd.AssignedTo != nil {
		if _, err := tx.ExecContext(ctx, `delete from card_assignees where card_id=$1`, id); err != nil {
			return Card{}, err
		}
		for _, uid := range upd.AssignedTo {
			if _, err := tx.ExecContext(ctx,
				`insert into card_assignees(card_id, user_id) values($1,$2) on conflict do nothing`, id, uid); err != nil {
				return Card{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return Card{}, err
	}
	return s.GetCard(ctx, id)
}

// Activity

func (s *Store) InsertActivity(ctx context.Context, a ActivityLog) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return goerr.Wrap(err, "encode activity details")
	}
	_, err = s.db.ExecContext(ctx,
		`insert into activity_log(action, user_id, board_id, card_id, details) values($1,$2,$3,$4,$5)`,
		a.Action, a.UserID, a.BoardID, a.CardID, data)
	return err
}

func (s *Store) ActivitiesByBoard(ctx context.Context, boardID int64, limit int) ([]ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`select a.id, a.action, a.user_id, coalesce(u.username,''), a.board_id, a.card_id, a.details, a.created_at
		 from activity_log a left join users u on u.id = a.user_id
		 where a.board_id=$1 order by a.created_at desc, a.id desc limit $2`, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ActivityLog{}
	for rows.Next() {
		var a ActivityLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.Action, &a.UserID, &a.Username, &a.BoardID, &a.CardID, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, goerr.Wrap(err, "decode activity details")
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
