package main

import (
	"net/http"
	"strings"
)

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request, u authUser) {
	items, err := a.store.BoardsForUser(r.Context(), u.ID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request, u authUser) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
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
	b, err := a.store.CreateBoard(r.Context(), u.ID, title, req.Description)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "created board", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
	})
	writeJSON(w, http.StatusCreated, b)
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	b, err := a.authorizeBoard(r.Context(), id, u.ID, false)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if _, err := a.authorizeBoard(r.Context(), id, u.ID, true); err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeErr(w, a.log, apiErr(errValidation, codeMissingTitle, "title cannot be empty"))
		return
	}
	b, err := a.store.UpdateBoard(r.Context(), id, req.Title, req.Description)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "updated board", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	b, err := a.authorizeBoard(r.Context(), id, u.ID, true)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if err := a.store.DeleteBoard(r.Context(), id); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "deleted board", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) handleBoardActivities(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if _, err := a.authorizeBoard(r.Context(), id, u.ID, false); err != nil {
		writeErr(w, a.log, err)
		return
	}
	items, err := a.store.ActivitiesByBoard(r.Context(), id, 50)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleBoardEvents(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if _, err := a.authorizeBoard(r.Context(), id, u.ID, false); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.bus.ServeSSE(w, r, id)
}

func (a *api) handleAddBoardMember(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	b, err := a.authorizeBoard(r.Context(), id, u.ID, true)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.UserID == 0 {
		writeErr(w, a.log, apiErr(errValidation, codeMissingFields, "userId is required"))
		return
	}
	// Verify the user exists before adding the membership row.
	if _, err := a.store.UserByID(r.Context(), req.UserID); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if err := a.store.AddBoardMember(r.Context(), id, req.UserID); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "updated board", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"addedMember": req.UserID},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *api) handleRemoveBoardMember(w http.ResponseWriter, r *http.Request, u authUser) {
	id, err := a.pathID(r, "id")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	uid, err := a.pathID(r, "userId")
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	b, err := a.authorizeBoard(r.Context(), id, u.ID, true)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if uid == b.CreatedBy {
		writeErr(w, a.log, apiErr(errValidation, codeMissingFields, "cannot remove the board creator"))
		return
	}
	if err := a.store.RemoveBoardMember(r.Context(), id, uid); err != nil {
		writeErr(w, a.log, err)
		return
	}
	a.notifier.Record(activityEvent{
		Action: "updated board", UserID: u.ID, Username: u.Username,
		BoardID: b.ID, BoardTitle: b.Title,
		Details: map[string]any{"removedMember": uid},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
