package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type api struct {
	store    *Store
	log      *slog.Logger
	cfg      *Config
	bus      *EventBus
	notifier *Notifier
	metrics  *metricsCollector
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

func newAPI(store *Store, log *slog.Logger, cfg *Config, bus *EventBus, notifier *Notifier, m *metricsCollector) *api {
	return &api{store: store, log: log, cfg: cfg, bus: bus, notifier: notifier, metrics: m, rl: map[string]*rateBucket{}}
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{count: 0, resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		a.rlMu.Unlock()
		return false
	}
	b.count++
	a.rlMu.Unlock()
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r.RemoteAddr, name, max, window) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many requests", "code": "RATE_LIMITED"})
			return
		}
		next(w, r)
	}
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func (a *api) pathID(r *http.Request, name string) (int64, error) {
	id, err := parseID(r.PathValue(name))
	if err != nil {
		return 0, apiErr(errValidation, codeInvalidID, "invalid id")
	}
	return id, nil
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apiErr(errValidation, codeMissingFields, "invalid request body")
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

// authUser is the identity a valid token resolves to.
type authUser struct {
	ID       int64
	Username string
}

func (a *api) issueToken(u User) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject(strconv.FormatInt(u.ID, 10)).
		Claim("username", u.Username).
		IssuedAt(now).
		Expiration(now.Add(a.cfg.TokenTTL)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(a.cfg.JWTSecret)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (a *api) parseToken(raw string) (authUser, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, []byte(a.cfg.JWTSecret)),
		jwt.WithValidate(true))
	if err != nil {
		return authUser{}, apiErr(errUnauthenticated, codeInvalidToken, "invalid or expired token")
	}
	id, err := parseID(tok.Subject())
	if err != nil {
		return authUser{}, apiErr(errUnauthenticated, codeInvalidToken, "invalid or expired token")
	}
	u := authUser{ID: id}
	if v, ok := tok.Get("username"); ok {
		if s, ok := v.(string); ok {
			u.Username = s
		}
	}
	return u, nil
}

func (a *api) currentUser(r *http.Request) (authUser, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return authUser{}, apiErr(errUnauthenticated, codeNoToken, "authorization token required")
	}
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return authUser{}, apiErr(errUnauthenticated, codeNoToken, "authorization token required")
	}
	return a.parseToken(raw)
}

// requireAuth resolves the bearer token and passes the identity through.
func (a *api) requireAuth(next func(http.ResponseWriter, *http.Request, authUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := a.currentUser(r)
		if err != nil {
			writeErr(w, a.log, err)
			return
		}
		next(w, r, u)
	}
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("GET /api/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/boards", a.requireAuth(a.handleListBoards))
	mux.HandleFunc("POST /api/boards", a.requireAuth(a.handleCreateBoard))
	mux.HandleFunc("GET /api/boards/{id}", a.requireAuth(a.handleGetBoard))
	mux.HandleFunc("PUT /api/boards/{id}", a.requireAuth(a.handleUpdateBoard))
	mux.HandleFunc("DELETE /api/boards/{id}", a.requireAuth(a.handleDeleteBoard))
	mux.HandleFunc("GET /api/boards/{id}/activities", a.requireAuth(a.handleBoardActivities))
	mux.HandleFunc("GET /api/boards/{id}/events", a.requireAuth(a.handleBoardEvents))
	mux.HandleFunc("POST /api/boards/{id}/members", a.requireAuth(a.handleAddBoardMember))
	mux.HandleFunc("DELETE /api/boards/{id}/members/{userId}", a.requireAuth(a.handleRemoveBoardMember))

	mux.HandleFunc("GET /api/boards/{boardId}/lists", a.requireAuth(a.handleListsByBoard))
	mux.HandleFunc("POST /api/boards/{boardId}/lists", a.requireAuth(a.handleCreateList))
	mux.HandleFunc("PUT /api/lists/{id}", a.requireAuth(a.handleUpdateList))
	mux.HandleFunc("PUT /api/lists/{id}/move", a.requireAuth(a.handleMoveList))
	mux.HandleFunc("DELETE /api/lists/{id}", a.requireAuth(a.handleDeleteList))

	mux.HandleFunc("GET /api/lists/{listId}/cards", a.requireAuth(a.handleCardsByList))
	mux.HandleFunc("POST /api/lists/{listId}/cards", a.requireAuth(a.handleCreateCard))
	mux.HandleFunc("PUT /api/cards/{id}", a.requireAuth(a.handleUpdateCard))
	mux.HandleFunc("PUT /api/cards/{id}/move", a.requireAuth(a.handleMoveCard))
	mux.HandleFunc("DELETE /api/cards/{id}", a.requireAuth(a.handleDeleteCard))
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

func (a *api) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		reqID := uuid.NewString()
		sw.Header().Set("X-Request-Id", reqID)
		start := time.Now()
		next.ServeHTTP(sw, r)
		a.metrics.recordRequest(r.Method, sw.status)
		a.log.Info("http", "req_id", reqID, "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
