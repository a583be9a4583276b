package main

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeErr(w, a.log, apiErr(errValidation, codeMissingCredentials, "username and password required"))
		return
	}
	exists, err := a.store.UserExists(r.Context(), username)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	if exists {
		writeErr(w, a.log, apiErr(errConflict, codeUserExists, "username already taken"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	u, err := a.store.CreateUser(r.Context(), username, string(hash))
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	token, err := a.issueToken(u)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeErr(w, a.log, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeErr(w, a.log, apiErr(errValidation, codeMissingCredentials, "username and password required"))
		return
	}
	u, err := a.store.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	token, err := a.issueToken(u)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request, au authUser) {
	u, err := a.store.UserByID(r.Context(), au.ID)
	if err != nil {
		writeErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
