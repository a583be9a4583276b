package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAPI(secret string) *api {
	return &api{
		log: testLogger(),
		cfg: &Config{JWTSecret: secret, TokenTTL: time.Hour},
		rl:  map[string]*rateBucket{},
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := testAPI("test-secret")
	tok, err := a.issueToken(User{ID: 42, Username: "ana"})
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	u, err := a.parseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "ana", u.Username)
}

func TestTokenWrongKeyRejected(t *testing.T) {
	tok, err := testAPI("secret-one").issueToken(User{ID: 1, Username: "x"})
	require.NoError(t, err)

	_, err = testAPI("secret-two").parseToken(tok)
	require.Error(t, err)
	assert.Equal(t, codeInvalidToken, errCode(err))
	assert.Equal(t, 401, errStatus(err))
}

func TestTokenExpiryRejected(t *testing.T) {
	a := testAPI("test-secret")
	a.cfg.TokenTTL = -time.Minute
	tok, err := a.issueToken(User{ID: 1, Username: "x"})
	require.NoError(t, err)

	_, err = a.parseToken(tok)
	require.Error(t, err)
	assert.Equal(t, codeInvalidToken, errCode(err))
}

func TestCurrentUserHeaderParsing(t *testing.T) {
	a := testAPI("test-secret")
	tok, err := a.issueToken(User{ID: 9, Username: "bo"})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/me", nil)
	_, err = a.currentUser(r)
	require.Error(t, err)
	assert.Equal(t, codeNoToken, errCode(err))

	r.Header.Set("Authorization", tok) // no Bearer prefix
	_, err = a.currentUser(r)
	require.Error(t, err)
	assert.Equal(t, codeNoToken, errCode(err))

	r.Header.Set("Authorization", "Bearer garbage")
	_, err = a.currentUser(r)
	require.Error(t, err)
	assert.Equal(t, codeInvalidToken, errCode(err))

	r.Header.Set("Authorization", "Bearer "+tok)
	u, err := a.currentUser(r)
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.ID)
}

func TestRateLimit(t *testing.T) {
	a := testAPI("test-secret")
	for i := 0; i < 5; i++ {
		assert.True(t, a.allow("1.2.3.4", "auth", 5, time.Minute))
	}
	assert.False(t, a.allow("1.2.3.4", "auth", 5, time.Minute))
	// Different IP has its own bucket.
	assert.True(t, a.allow("5.6.7.8", "auth", 5, time.Minute))
}

func TestMoveListRequiresBoardIDAndPosition(t *testing.T) {
	a := testAPI("test-secret")

	for _, body := range []string{`{"position": 1}`, `{"boardId": 3}`, `{}`} {
		r := httptest.NewRequest("PUT", "/api/lists/9/move", strings.NewReader(body))
		r.SetPathValue("id", "9")
		rec := httptest.NewRecorder()
		a.handleMoveList(rec, r, authUser{ID: 1, Username: "ana"})

		assert.Equal(t, 400, rec.Code, "body %s", body)
		var resp struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, codeMissingFields, resp.Code, "body %s", body)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.validate())

	cfg.JWTSecret = "s"
	require.NoError(t, cfg.validate())
}
