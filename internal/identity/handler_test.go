package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDisconnector struct{ sessions []string }

func (d *recordingDisconnector) DisconnectSession(sessionID string) {
	d.sessions = append(d.sessions, sessionID)
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandler_AnonymousThenSessionThenSignOut(t *testing.T) {
	d := &recordingDisconnector{}
	p := newTestProvider(t)
	h := NewHandler(p, d)

	rec := httptest.NewRecorder()
	h.Anonymous(rec, httptest.NewRequest(http.MethodPost, "/api/auth/anonymous", nil))
	created := decodeSession(t, rec)
	assert.True(t, created.Identity.Anonymous)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = httptest.NewRecorder()
	h.Session(rec, req)
	resumed := decodeSession(t, rec)
	assert.Equal(t, created.Identity.ID, resumed.Identity.ID)
	assert.Equal(t, MethodResumed, resumed.Identity.Method)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/signout?token="+created.Token, nil)
	rec = httptest.NewRecorder()
	h.SignOut(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	sid, _, err := p.signer.ParseSession(created.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{sid}, d.sessions)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = httptest.NewRecorder()
	h.Session(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Redeem(t *testing.T) {
	p := newTestProvider(t)
	h := NewHandler(p, nil)
	custom, err := p.signer.IssueCustom("alice", time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Redeem(rec, httptest.NewRequest(http.MethodPost, "/api/auth/redeem", strings.NewReader(`{"token":"`+custom+`"}`)))
	resp := decodeSession(t, rec)
	assert.Equal(t, "alice", resp.Identity.ID)
	assert.Equal(t, MethodToken, resp.Identity.Method)

	rec = httptest.NewRecorder()
	h.Redeem(rec, httptest.NewRequest(http.MethodPost, "/api/auth/redeem", strings.NewReader(`{"token":"bogus"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	rec = httptest.NewRecorder()
	h.Redeem(rec, httptest.NewRequest(http.MethodPost, "/api/auth/redeem", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MethodChecks(t *testing.T) {
	h := NewHandler(newTestProvider(t), nil)

	rec := httptest.NewRecorder()
	h.Anonymous(rec, httptest.NewRequest(http.MethodGet, "/api/auth/anonymous", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_StoreFailureIsNotLeaked(t *testing.T) {
	store, s := setupTestRedis(t)
	h := NewHandler(NewProvider(store, NewSigner("test-secret"), time.Hour), nil)
	s.SetError("READONLY replica is down")

	rec := httptest.NewRecorder()
	h.Anonymous(rec, httptest.NewRequest(http.MethodPost, "/api/auth/anonymous", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create anonymous session\n", rec.Body.String())
}
