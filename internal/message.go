package internal

import "encoding/json"

// 系統設計問題：
//   如何定義客戶端與服務器之間的消息協議，並在編譯期約束消息種類？
//
// 核心挑戰：
//   1. 封閉集合：入站消息只有七種，未知類型必須被忽略而非擴散
//   2. 部分更新：player_update 允許只帶部分欄位（未帶的欄位不變）
//   3. 回音排除：部分廣播需要排除發送者本人
//
// 設計方案：
//   ✅ 字串常數集合 - 集中定義所有消息類型（入站 + 出站）
//   ✅ 型別化 payload - 每種入站消息對應一個結構體
//   ✅ 指標欄位 - 區分「未提供」與「零值」（部分更新語義）

// Envelope 入站消息信封
//
// 線路格式：每個 WebSocket 文本幀一條 JSON 消息 { "type": ..., "data": ... }。
// data 欄位延遲解析（json.RawMessage），由各消息處理器按型別解碼。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// 入站消息類型（客戶端 → 服務器）
const (
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgQuickMatch   = "quick_match"
	MsgLeaveRoom    = "leave_room"
	MsgReady        = "ready"
	MsgPlayerUpdate = "player_update"
	MsgGameEvent    = "game_event"
)

// 出站消息類型（服務器 → 客戶端）
const (
	MsgConnected   = "connected"
	MsgRoomCreated = "room_created"
	MsgRoomJoined  = "room_joined"
	MsgPlayerJoin  = "player_joined"
	MsgPlayerLeft  = "player_left"
	MsgPlayerReady = "player_ready"
	MsgGameStart   = "game_start"
	MsgPlayerState = "player_state"
	MsgError       = "error"
)

// Position 2D 座標
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// joinRoomData join_room 消息的 payload
type joinRoomData struct {
	RoomID string `json:"roomId"`
}

// PlayerUpdate player_update 消息的 payload
//
// 指標欄位實現部分更新：nil 表示客戶端未提供該欄位，保留原值。
// health/score 的零值（0）是合法數據，不能用零值判斷是否提供。
type PlayerUpdate struct {
	Position *Position `json:"position,omitempty"`
	Health   *int      `json:"health,omitempty"`
	Score    *int      `json:"score,omitempty"`
}

// 出站消息結構
//
// 線路格式沿用扁平欄位（type 與 payload 同層），與客戶端既有協議一致。

type connectedMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type roomCreatedMsg struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
}

type roomJoinedMsg struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
}

type playerJoinedMsg struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

type playerLeftMsg struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

type playerReadyMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type gameStartMsg struct {
	Type string `json:"type"`
}

// PlayerSnapshot 玩家狀態快照（player_state 消息的 state 欄位）
type PlayerSnapshot struct {
	Position Position `json:"position"`
	Health   int      `json:"health"`
	Score    int      `json:"score"`
}

type playerStateMsg struct {
	Type     string         `json:"type"`
	PlayerID string         `json:"playerId"`
	State    PlayerSnapshot `json:"state"`
}

type gameEventMsg struct {
	Type     string          `json:"type"`
	PlayerID string          `json:"playerId"`
	Event    json.RawMessage `json:"event"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// 協議錯誤文案（對外契約的一部分，客戶端依賴精確字串）
const (
	ErrRoomNotFound = "Room not found"
	ErrRoomFull     = "Room is full"
)

// encode 序列化出站消息
//
// 出站結構全部由服務器構造，欄位型別已知可序列化，
// Marshal 失敗屬於程式錯誤而非運行時條件，直接吞掉並返回 nil。
func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
