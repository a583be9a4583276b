package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apiErr(errValidation, codeMissingTitle, "title is required"), http.StatusBadRequest},
		{apiErr(errUnauthenticated, codeNoToken, "authorization token required"), http.StatusUnauthorized},
		{apiErr(errAccessDenied, codeAccessDenied, "access denied"), http.StatusForbidden},
		{apiErr(errNotFound, codeBoardNotFound, "board not found"), http.StatusNotFound},
		{apiErr(errConflict, codeInvalidBoard, "list does not belong to that board"), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errStatus(tc.err))
	}
}

func TestErrCode(t *testing.T) {
	assert.Equal(t, codeCardNotFound, errCode(apiErr(errNotFound, codeCardNotFound, "card not found")))
	assert.Equal(t, codeServerError, errCode(errors.New("no code attached")))
}

func TestWriteErrBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, testLogger(), apiErr(errNotFound, codeListNotFound, "list not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "list not found", body.Error)
	assert.Equal(t, codeListNotFound, body.Code)
}

func TestWriteErrHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, testLogger(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, codeServerError, body.Code)
	assert.NotContains(t, body.Error, "connection refused")
}
