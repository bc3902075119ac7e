package internal_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koopa0/system-design/14-multiplayer-relay/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 啟動完整的中繼服務器（WebSocket + 協調器）
func newTestServer(t *testing.T) (*httptest.Server, *internal.Manager, *internal.Hub) {
	t.Helper()

	logger := testLogger()
	registry := internal.NewRegistry(logger)
	manager := internal.NewManager(registry, internal.DefaultConfig(), logger)
	hub := internal.NewHub(manager, logger)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))

	t.Cleanup(func() {
		server.Close()
		manager.Stop()
		hub.Stop()
	})

	return server, manager, hub
}

// dial 建立 WebSocket 連接並讀取歡迎消息，返回連接與分配的玩家身份
func dial(t *testing.T, server *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	welcome := readMsg(t, ws)
	require.Equal(t, "connected", welcome["type"])
	playerID := welcome["playerId"].(string)
	require.NotEmpty(t, playerID)

	return ws, playerID
}

// readMsg 讀取下一條消息（2 秒超時）
func readMsg(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// TestHub_ConnectAssignsIdentity 測試連接建立與身份分配
func TestHub_ConnectAssignsIdentity(t *testing.T) {
	server, manager, _ := newTestServer(t)

	ws1, player1 := dial(t, server)
	defer ws1.Close()
	ws2, player2 := dial(t, server)
	defer ws2.Close()

	// 每條連接拿到不同的身份
	assert.NotEqual(t, player1, player2)

	_, players := manager.Stats()
	assert.Equal(t, 2, players)
}

// TestHub_EndToEndMatch 端到端：建房 → 加入 → 準備 → 開局 → 狀態轉發
func TestHub_EndToEndMatch(t *testing.T) {
	server, _, _ := newTestServer(t)

	wsA, playerA := dial(t, server)
	defer wsA.Close()
	wsB, playerB := dial(t, server)
	defer wsB.Close()

	// A 建房
	require.NoError(t, wsA.WriteJSON(map[string]any{"type": "create_room"}))
	created := readMsg(t, wsA)
	require.Equal(t, "room_created", created["type"])
	roomID := created["roomId"].(string)

	// B 加入：B 收到 room_joined，A 收到 player_joined
	require.NoError(t, wsB.WriteJSON(map[string]any{
		"type": "join_room",
		"data": map[string]any{"roomId": roomID},
	}))
	joined := readMsg(t, wsB)
	assert.Equal(t, "room_joined", joined["type"])
	assert.Equal(t, roomID, joined["roomId"])

	notified := readMsg(t, wsA)
	assert.Equal(t, "player_joined", notified["type"])
	assert.Equal(t, playerB, notified["playerId"])

	// 雙方準備：各收到兩條 player_ready 後跟 game_start
	require.NoError(t, wsA.WriteJSON(map[string]any{"type": "ready"}))
	require.NoError(t, wsB.WriteJSON(map[string]any{"type": "ready"}))

	for _, ws := range []*websocket.Conn{wsA, wsB} {
		assert.Equal(t, "player_ready", readMsg(t, ws)["type"])
		assert.Equal(t, "player_ready", readMsg(t, ws)["type"])
		assert.Equal(t, "game_start", readMsg(t, ws)["type"])
	}

	// A 上報狀態：只有 B 收到 player_state
	require.NoError(t, wsA.WriteJSON(map[string]any{
		"type": "player_update",
		"data": map[string]any{"position": map[string]any{"x": 10, "y": 20}},
	}))

	state := readMsg(t, wsB)
	require.Equal(t, "player_state", state["type"])
	assert.Equal(t, playerA, state["playerId"])
	position := state["state"].(map[string]any)["position"].(map[string]any)
	assert.Equal(t, float64(10), position["x"])
	assert.Equal(t, float64(20), position["y"])
}

// TestHub_DisconnectLeavesRoom 測試斷線等價於離房
func TestHub_DisconnectLeavesRoom(t *testing.T) {
	server, manager, _ := newTestServer(t)

	wsA, _ := dial(t, server)
	defer wsA.Close()
	wsB, playerB := dial(t, server)

	// 組一個雙人房
	require.NoError(t, wsA.WriteJSON(map[string]any{"type": "create_room"}))
	created := readMsg(t, wsA)
	roomID := created["roomId"].(string)

	require.NoError(t, wsB.WriteJSON(map[string]any{
		"type": "join_room",
		"data": map[string]any{"roomId": roomID},
	}))
	readMsg(t, wsB) // room_joined
	readMsg(t, wsA) // player_joined

	// B 直接斷線：A 收到 player_left，房間保留 1 人
	require.NoError(t, wsB.Close())

	left := readMsg(t, wsA)
	assert.Equal(t, "player_left", left["type"])
	assert.Equal(t, playerB, left["playerId"])
	assert.Equal(t, float64(1), left["playerCount"])

	require.Eventually(t, func() bool {
		info, exists := manager.GetRoomInfo(roomID)
		return exists && info.PlayerCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestHub_MalformedFrameKeepsConnection 測試畸形幀不斷開連接
func TestHub_MalformedFrameKeepsConnection(t *testing.T) {
	server, _, _ := newTestServer(t)

	ws, _ := dial(t, server)
	defer ws.Close()

	// 發送無法解析的幀：服務器丟棄並保持連接
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not a json")))

	// 連接仍然可用：後續消息照常處理
	require.NoError(t, ws.WriteJSON(map[string]any{"type": "create_room"}))
	msg := readMsg(t, ws)
	assert.Equal(t, "room_created", msg["type"])
}

// TestHub_Stop 測試停止接入層關閉所有連接
func TestHub_Stop(t *testing.T) {
	logger := testLogger()
	registry := internal.NewRegistry(logger)
	manager := internal.NewManager(registry, internal.DefaultConfig(), logger)
	defer manager.Stop()

	hub := internal.NewHub(manager, logger)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	ws, _ := dial(t, server)
	defer ws.Close()

	hub.Stop()

	// 連接已被服務器關閉：讀取返回錯誤
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}
