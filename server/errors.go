package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
)

// Taxonomy roots. Every user-visible error wraps exactly one of these and
// carries a stable short code for API consumers.
var (
	errValidation      = goerr.New("validation failed")
	errNotFound        = goerr.New("not found")
	errAccessDenied    = goerr.New("access denied")
	errUnauthenticated = goerr.New("unauthenticated")
	errConflict        = goerr.New("conflict")
)

const (
	codeMissingCredentials = "MISSING_CREDENTIALS"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeUserExists         = "USER_EXISTS"
	codeNoToken            = "NO_TOKEN"
	codeInvalidToken       = "INVALID_TOKEN"
	codeInvalidID          = "INVALID_ID"
	codeMissingTitle       = "MISSING_TITLE"
	codeMissingFields      = "MISSING_FIELDS"
	codeInvalidPriority    = "INVALID_PRIORITY"
	codeInvalidPosition    = "INVALID_POSITION"
	codeBoardNotFound      = "BOARD_NOT_FOUND"
	codeListNotFound       = "LIST_NOT_FOUND"
	codeCardNotFound       = "CARD_NOT_FOUND"
	codeUserNotFound       = "USER_NOT_FOUND"
	codeInvalidBoard       = "INVALID_BOARD"
	codeAccessDenied       = "ACCESS_DENIED"
	codeServerError        = "SERVER_ERROR"
)

func apiErr(root *goerr.Error, code, msg string) error {
	return goerr.Wrap(root, msg, goerr.V("code", code), goerr.V("message", msg))
}

func errCode(err error) string {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		if c, ok := ge.Values()["code"].(string); ok {
			return c
		}
	}
	return codeServerError
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, errValidation):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr maps any error onto the {error, code} wire shape. Unclassified
// errors become opaque 500s; their detail goes to the log only.
func writeErr(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errStatus(err)
	msg := err.Error()
	var ge *goerr.Error
	if errors.As(err, &ge) {
		if m, ok := ge.Values()["message"].(string); ok {
			msg = m
		}
	}
	if status == http.StatusInternalServerError {
		if ge != nil {
			log.Error("internal error", "err", err, "values", ge.Values())
		} else {
			log.Error("internal error", "err", err)
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg, "code": errCode(err)})
}
