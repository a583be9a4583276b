package main

import (
	"database/sql"
	"net/http"
	"strings"
	"time"
)

func (a *api) handleCardsByList(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "listId")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if _, _, err := a.authorizeList(r.Context(), id, u.ID, false); err != nil {
		writeErr(w, a.log, err)
		return
	}
	items, err := a.store.CardsByList(r.Context(), id)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleCreateCard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "listId")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	l, b, err := a.authorizeList(r.Context(), id, u.ID, false)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		Labels      []string `json:"labels"`
		DueDate     *string  `json:"dueDate"`
		AssignedTo  []int64  `json:"assignedTo"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeErr(w, a.log, apiErr(errValidation, codeMissingTitle, "title is required"))
		return
	}
	priority := PriorityMedium
	if req.Priority != "" {
		priority = Priority(req.Priority)
		if !priority.Valid() {
			writeErr(w, a.log, apiErr(errValidation, codeInvalidPriority, "priority must be low, medium, high or critical"))
			return
		}
	}
	c, err := a.store.CreateCard(r.Context(), id, title, req.Description, priority, req.Labels)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.DueDate != nil || req.AssignedTo != nil {
		upd := cardUpdate{AssignedTo: req.AssignedTo}
		if req.DueDate != nil {
			due, derr := parseDueDate(*req.DueDate)
			if derr != nil {
				writeErr(w, a.log, derr)
				return
			}
			upd.DueAt = due
		}
		if c, err = a.store.UpdateCard(r.Context(), c.ID, upd); err != nil {
			writeErr(w, a.log, err)
			return
		}
	}
	a.notifier.Record(activityEvent{
		Action: "created card", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title, CardID: &c.ID, CardTitle: c.Title,
		Details: map[string]any{"listTitle": l.Title},
	})
	writeJSON(w, http.StatusCreated, c)
}

func parseDueDate(s string) (*sql.NullTime, error) {
	if s == "" {
		return &sql.NullTime{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apiErr(errValidation, codeMissingFields, "dueDate must be RFC 3339")
	}
	return &sql.NullTime{Time: t, Valid: true}, nil
}

func (a *api) handleUpdateCard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	_, _, b, err := a.authorizeCard(r.Context(), id, u.ID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Priority    *string  `json:"priority"`
		Labels      []string `json:"labels"`
		DueDate     *string  `json:"dueDate"`
		AssignedTo  []int64  `json:"assignedTo"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	upd := cardUpdate{Description: req.Description, Labels: req.Labels, AssignedTo: req.AssignedTo}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeErr(w, a.log, apiErr(errValidation, codeMissingTitle, "title cannot be empty"))
			return
		}
		upd.Title = &title
	}
	if req.Priority != nil {
		p := Priority(*req.Priority)
		if !p.Valid() {
			writeErr(w, a.log, apiErr(errValidation, codeInvalidPriority, "priority must be low, medium, high or critical"))
			return
		}
		upd.Priority = &p
	}
	if req.DueDate != nil {
		due, derr := parseDueDate(*req.DueDate)
		if derr != nil {
			writeErr(w, a.log, derr)
			return
		}
		upd.DueAt = due
	}
	c, err := a.store.UpdateCard(r.Context(), id, upd)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "updated card", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title, CardID: &c.ID, CardTitle: c.Title,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleMoveCard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	c, _, b, err := a.authorizeCard(r.Context(), id, u.ID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		ListID   int64  `json:"listId"`
		Position *int64 `json:"position"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.ListID == 0 || req.Position == nil {
		writeErr(w, a.log, apiErr(errValidation, codeMissingFields, "listId and position required"))
		return
	}
	target, err := a.store.GetList(r.Context(), req.ListID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	// Cards move between lists of one board only.
	if target.BoardID != b.ID {
		writeErr(w, a.log, apiErr(errConflict, codeInvalidBoard, "target list belongs to another board"))
		return
	}
	start := time.Now()
	moved, err := a.store.MoveCard(r.Context(), c, target.ID, *req.Position)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.metrics.observeMove(time.Since(start))
	a.notifier.Record(activityEvent{
		Action: "moved card", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title, CardID: &moved.ID, CardTitle: moved.Title,
		Details: map[string]any{"listTitle": target.Title, "newPosition": moved.Position},
	})
	writeJSON(w, http.StatusOK, moved)
}

func (a *api) handleDeleteCard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	c, _, b, err := a.authorizeCard(r.Context(), id, u.ID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if err := a.store.DeleteCard(r.Context(), c); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "deleted card", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title, CardID: &c.ID, CardTitle: c.Title,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
