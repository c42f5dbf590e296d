package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t     *testing.T
	app   *Server
	clock *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, func(*config.Config) {})
}

func newTestServerWith(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:                "test",
		Port:               "0",
		JWTSecret:          "router-test-secret",
		AccessTokenTTL:     time.Hour,
		MaxLoginAttempts:   5,
		LoginBlockSeconds:  900,
		MaxUsersPerRoom:    100,
		MaxRoomsPerUser:    50,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: "*",
	}
	mutate(cfg)
	clk := clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	app := New(cfg, testutil.NewDB(t), clk, auth.BcryptHasher{Cost: bcrypt.MinCost})
	t.Cleanup(app.Limiter.Stop)
	return &testServer{t: t, app: app, clock: clk}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	return s.doForwarded(method, path, token, "", body)
}

// doForwarded sends the request with forwardedFor in X-Forwarded-For when it
// is not empty.
func (s *testServer) doForwarded(method, path, token, forwardedFor string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Engine.ServeHTTP(w, req)
	s.clock.Advance(time.Second)

	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *testServer) register(username string) (string, string) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	return body["access_token"].(string), user["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Chat server is running", body["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", "", nil)

	w := httptest.NewRecorder()
	s.app.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["code"])

	code, _ = s.do(http.MethodGet, "/api/rooms", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginBlockedOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.register("alice")

	for i := 0; i < 5; i++ {
		code, body := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, code, body)
	}
	code, body := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, true, body["blocked"])
	assert.Equal(t, "too_many_attempts", body["code"])

	s.clock.Advance(900 * time.Second)
	code, body = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["access_token"])
}

func TestLoginThrottleIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t)
	s.register("alice")

	for i := 0; i < 5; i++ {
		spoofed := fmt.Sprintf("203.0.113.%d", i+1)
		code, body := s.doForwarded(http.MethodPost, "/api/auth/login", "", spoofed, gin.H{"username": "alice", "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, code, body)
	}
	code, body := s.doForwarded(http.MethodPost, "/api/auth/login", "", "203.0.113.99", gin.H{"username": "alice", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, code, body)
	assert.Equal(t, true, body["blocked"])
}

func TestLoginThrottleHonorsTrustedProxy(t *testing.T) {
	s := newTestServerWith(t, func(c *config.Config) { c.TrustedProxyList = "192.0.2.10" })
	s.register("alice")

	for i := 0; i < 5; i++ {
		code, body := s.doForwarded(http.MethodPost, "/api/auth/login", "", "198.51.100.1", gin.H{"username": "alice", "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, code, body)
	}
	code, body := s.doForwarded(http.MethodPost, "/api/auth/login", "", "198.51.100.1", gin.H{"username": "alice", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, code, body)

	// Another client behind the same proxy is throttled separately.
	code, body = s.doForwarded(http.MethodPost, "/api/auth/login", "", "198.51.100.2", gin.H{"username": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["access_token"])
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")

	code, body := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "email": "x@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["code"])

	code, body = s.do(http.MethodPost, "/api/rooms", alice, gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", body["code"])

	code, body = s.do(http.MethodGet, "/api/rooms/does-not-exist", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Room not found", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+alice)
	w := httptest.NewRecorder()
	s.app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatScenario(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.register("alice")
	bob, bobID := s.register("bob")

	code, body := s.do(http.MethodPost, "/api/rooms", alice, gin.H{"name": "Lounge", "description": "hang out"})
	require.Equal(t, http.StatusCreated, code, body)
	roomID := body["room"].(map[string]any)["id"].(string)
	roomPath := "/api/rooms/" + roomID

	code, body = s.do(http.MethodPost, roomPath+"/join", bob, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["already_member"])
	assert.EqualValues(t, 2, body["room"].(map[string]any)["member_count"])

	code, body = s.do(http.MethodPost, roomPath+"/join", bob, gin.H{})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["already_member"])

	code, body = s.do(http.MethodPost, roomPath+"/enter", bob, nil)
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodPost, roomPath+"/messages", bob, gin.H{"content": "hi alice"})
	require.Equal(t, http.StatusCreated, code, body)
	msgID := body["message_data"].(map[string]any)["id"].(string)

	code, body = s.do(http.MethodPost, "/api/messages/"+msgID+"/reactions", alice, gin.H{"emoji": "👍"})
	require.Equal(t, http.StatusOK, code, body)
	code, _ = s.do(http.MethodPost, "/api/messages/"+msgID+"/reactions", alice, gin.H{"emoji": "👍"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(http.MethodGet, roomPath+"/messages?page=1&per_page=10", bob, nil)
	require.Equal(t, http.StatusOK, code, body)
	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	newest := messages[0].(map[string]any)
	assert.Equal(t, "hi alice", newest["content"])
	thumbs := newest["reactions"].(map[string]any)["👍"].([]any)
	require.Len(t, thumbs, 1)
	assert.Equal(t, aliceID, thumbs[0].(map[string]any)["id"])
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["total"])
	assert.EqualValues(t, 1, pagination["pages"])

	code, body = s.do(http.MethodPost, roomPath+"/leave", alice, nil)
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodGet, roomPath+"/membership", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_member"])
	assert.Equal(t, "owner", body["role"])

	code, body = s.do(http.MethodGet, roomPath+"/membership", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_member"])
	assert.Nil(t, body["role"])

	code, body = s.do(http.MethodGet, roomPath, bob, nil)
	require.Equal(t, http.StatusOK, code, body)
	room := body["room"].(map[string]any)
	members := room["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, bobID, members[0].(map[string]any)["user"].(map[string]any)["id"])

	// Alice can no longer post but can still withdraw her reaction.
	code, _ = s.do(http.MethodPost, roomPath+"/messages", alice, gin.H{"content": "wait"})
	assert.Equal(t, http.StatusForbidden, code)
	code, body = s.do(http.MethodDelete, "/api/messages/"+msgID+"/reactions", alice, gin.H{"emoji": "👍"})
	assert.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodPut, "/api/messages/"+msgID, bob, gin.H{"content": "hi everyone"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["message_data"].(map[string]any)["is_edited"])

	code, _ = s.do(http.MethodDelete, "/api/messages/"+msgID, bob, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodDelete, "/api/messages/"+msgID, bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice")

	code, body := s.do(http.MethodPut, "/api/auth/profile", alice, gin.H{"display_name": "Alice A."})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodGet, "/api/auth/profile", alice, nil)
	require.Equal(t, http.StatusOK, code, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Alice A.", user["display_name"])
	assert.NotContains(t, user, "email")
	assert.NotContains(t, user, "password_hash")

	code, _ = s.do(http.MethodPost, "/api/auth/logout", alice, nil)
	assert.Equal(t, http.StatusOK, code)
}
