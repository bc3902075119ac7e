package internal_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koopa0/system-design/14-multiplayer-relay/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doRequest 執行請求並解析 JSON 響應
func doRequest(t *testing.T, router http.Handler, method, path string, out any) int {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	return w.Code
}

// TestHandler_Health 測試健康檢查
func TestHandler_Health(t *testing.T) {
	manager := newTestCoordinator(t)
	router := internal.NewHandler(manager, testLogger()).Routes()

	t.Run("empty coordinator", func(t *testing.T) {
		var resp map[string]any
		code := doRequest(t, router, http.MethodGet, "/api/health", &resp)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp["status"])
		assert.Equal(t, float64(0), resp["rooms"])
		assert.Equal(t, float64(0), resp["players"])
	})

	t.Run("counts rooms and connections", func(t *testing.T) {
		playerA, senderA := connect(t, manager)
		connect(t, manager)
		createRoom(t, manager, playerA, senderA)

		var resp map[string]any
		code := doRequest(t, router, http.MethodGet, "/api/health", &resp)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(1), resp["rooms"])
		assert.Equal(t, float64(2), resp["players"])
	})
}

// TestHandler_ListRooms 測試房間列表
func TestHandler_ListRooms(t *testing.T) {
	manager := newTestCoordinator(t)
	router := internal.NewHandler(manager, testLogger()).Routes()

	t.Run("empty list", func(t *testing.T) {
		var resp []map[string]any
		code := doRequest(t, router, http.MethodGet, "/api/rooms", &resp)

		assert.Equal(t, http.StatusOK, code)
		assert.Empty(t, resp)
	})

	t.Run("lists room summaries", func(t *testing.T) {
		playerA, senderA := connect(t, manager)
		roomID := createRoom(t, manager, playerA, senderA)

		var resp []map[string]any
		code := doRequest(t, router, http.MethodGet, "/api/rooms", &resp)

		assert.Equal(t, http.StatusOK, code)
		require.Len(t, resp, 1)
		assert.Equal(t, roomID, resp[0]["id"])
		assert.Equal(t, float64(1), resp[0]["playerCount"])
		assert.Equal(t, float64(2), resp[0]["maxPlayers"])
		assert.Equal(t, "waiting", resp[0]["gameState"])
	})
}

// TestHandler_GetRoom 測試單一房間查詢
func TestHandler_GetRoom(t *testing.T) {
	manager := newTestCoordinator(t)
	router := internal.NewHandler(manager, testLogger()).Routes()

	playerA, senderA := connect(t, manager)
	roomID := createRoom(t, manager, playerA, senderA)

	t.Run("existing room", func(t *testing.T) {
		var resp map[string]any
		code := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/rooms/%s", roomID), &resp)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, roomID, resp["id"])
		assert.Equal(t, "waiting", resp["gameState"])
	})

	t.Run("missing room returns 404", func(t *testing.T) {
		var resp map[string]any
		code := doRequest(t, router, http.MethodGet, "/api/rooms/room_missing", &resp)

		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Room not found", resp["error"])
	})
}
