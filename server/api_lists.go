package main

import (
	"net/http"
	"strings"
	"time"
)

// handleListsByBoard returns the board's lists in position order with their
// cards embedded, loaded in two queries rather than one per list.
func (a *api) handleListsByBoard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "boardId")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if _, err := a.authorizeBoard(r.Context(), id, u.ID, false); err != nil {
		writeErr(w, a.log, err)
		return
	}
	lists, err := a.store.ListsByBoard(r.Context(), id)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	cards, err := a.store.CardsByBoard(r.Context(), id)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	byList := map[int64][]Card{}
	for _, c := range cards {
		byList[c.ListID] = append(byList[c.ListID], c)
	}
	for i := range lists {
		lists[i].Cards = byList[lists[i].ID]
		if lists[i].Cards == nil {
			lists[i].Cards = []Card{}
		}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (a *api) handleCreateList(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "boardId")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	b, err := a.authorizeBoard(r.Context(), id, u.ID, false)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		Title string `json:"title"`
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
	l, err := a.store.CreateList(r.Context(), id, title)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "created list", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"listTitle": l.Title},
	})
	writeJSON(w, http.StatusCreated, l)
}

func (a *api) handleUpdateList(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	_, b, err := a.authorizeList(r.Context(), id, u.ID, false)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		Title string `json:"title"`
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
	l, err := a.store.UpdateListTitle(r.Context(), id, title)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "updated list", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"listTitle": l.Title},
	})
	writeJSON(w, http.StatusOK, l)
}

func (a *api) handleMoveList(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		BoardID  int64  `json:"boardId"`
		Position *int64 `json:"position"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.BoardID == 0 || req.Position == nil {
		writeErr(w, a.log, apiErr(errValidation, codeMissingFields, "boardId and position required"))
		return
	}
	l, b, err := a.authorizeList(r.Context(), id, u.ID, false)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	// Lists do not move between boards; the body's boardId must match.
	if req.BoardID != l.BoardID {
		writeErr(w, a.log, apiErr(errConflict, codeInvalidBoard, "list does not belong to that board"))
		return
	}
	start := time.Now()
	moved, err := a.store.MoveList(r.Context(), l, *req.Position)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.metrics.observeMove(time.Since(start))
	a.notifier.Record(activityEvent{
		Action: "moved list", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"listTitle": moved.Title, "newPosition": moved.Position},
	})
	writeJSON(w, http.StatusOK, moved)
}

func (a *api) handleDeleteList(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	l, b, err := a.authorizeList(r.Context(), id, u.ID, a.cfg.ListDeleteOwnerOnly)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if err := a.store.DeleteList(r.Context(), l); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "deleted list", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"listTitle": l.Title},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
