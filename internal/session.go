package internal

import (
	"encoding/json"
	"time"
)

// 系統設計問題：
//   如何把客戶端的消息流轉成房間目錄上的狀態變更，並把結果扇出給相關成員？
//
// 核心挑戰：
//   1. 錯誤分級：協議錯誤回給發送者、畸形輸入丟棄、過期引用靜默忽略
//   2. 開局恰好一次：兩個玩家先後 ready，game_start 只能廣播一次
//   3. 斷線競態：leave 之後在途的 player_update 必須安靜落地（非錯誤）
//   4. 順序保證：同一條入站消息觸發的廣播在處理器返回前全部投遞完成
//
// 設計方案：
//   ✅ 整條消息持鎖 - 讀取、變更、廣播在同一臨界區內（程序序投遞）
//   ✅ 狀態機守衛 - 只有 waiting → playing 轉換會觸發 game_start
//   ✅ 查無即返 - 所有「玩家不在房間」路徑都是無操作
//
// 協議總表（入站類型 → 效果 → 回應）：
//
//	create_room    建房 + 自己入座          單播 room_created
//	join_room      入座指定房間             單播 room_joined + 廣播 player_joined（排除本人）
//	quick_match    撮合或建房               同上二者之一
//	leave_room     離座（空房即刪）          廣播 player_left（房間還有人時）
//	ready          標記準備，可能開局        廣播 player_ready；開局時廣播 game_start
//	player_update  覆寫自身狀態（對局中）    廣播 player_state（排除本人）
//	game_event     純轉發                   廣播 game_event（排除本人）

// Connect 接納新連接
//
// 分配身份、登記註冊表、回發歡迎消息。返回分配的玩家身份。
func (m *Manager) Connect(sender Sender) string {
	playerID := m.registry.Register(sender)

	m.registry.Send(playerID, encode(connectedMsg{
		Type:     MsgConnected,
		PlayerID: playerID,
	}))

	m.logger.Info("玩家已連接", "player_id", playerID)
	return playerID
}

// Disconnect 處理連接關閉
//
// 等價於收到 leave_room 後將連接從註冊表移除。冪等。
func (m *Manager) Disconnect(playerID string) {
	m.handleLeaveRoom(playerID)
	m.registry.Unregister(playerID)
	m.logger.Info("玩家已斷線", "player_id", playerID)
}

// HandleMessage 處理一條入站消息
//
// 畸形消息（無法解析成信封）記錄後丟棄，連接保持打開。
// 未知類型記錄後忽略。兩者都不是可致命的條件。
func (m *Manager) HandleMessage(playerID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.logger.Warn("解析消息失敗", "player_id", playerID, "error", err)
		return
	}

	switch env.Type {
	case MsgCreateRoom:
		m.handleCreateRoom(playerID)
	case MsgJoinRoom:
		var data joinRoomData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			m.logger.Warn("解析 join_room 數據失敗", "player_id", playerID, "error", err)
			return
		}
		m.handleJoinRoom(playerID, data.RoomID)
	case MsgQuickMatch:
		m.handleQuickMatch(playerID)
	case MsgLeaveRoom:
		m.handleLeaveRoom(playerID)
	case MsgReady:
		m.handleReady(playerID)
	case MsgPlayerUpdate:
		var data PlayerUpdate
		if err := json.Unmarshal(env.Data, &data); err != nil {
			m.logger.Warn("解析 player_update 數據失敗", "player_id", playerID, "error", err)
			return
		}
		m.handlePlayerUpdate(playerID, data)
	case MsgGameEvent:
		m.handleGameEvent(playerID, env.Data)
	default:
		m.logger.Debug("未知消息類型", "player_id", playerID, "type", env.Type)
	}
}

// handleCreateRoom 建房並讓發送者入座
func (m *Manager) handleCreateRoom(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createAndJoin(playerID)
}

// createAndJoin 建房 + 入座 + 回發 room_created（調用方必須持有 mu）
func (m *Manager) createAndJoin(playerID string) {
	room := m.createRoom(time.Now())
	room.AddPlayer(playerID)
	m.registry.SetRoom(playerID, room.ID)

	m.registry.Send(playerID, encode(roomCreatedMsg{
		Type:        MsgRoomCreated,
		RoomID:      room.ID,
		PlayerCount: room.PlayerCount(),
	}))

	m.logger.Info("房間已創建", "room_id", room.ID, "player_id", playerID)
}

// handleJoinRoom 加入指定房間
func (m *Manager) handleJoinRoom(playerID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		m.registry.Send(playerID, encode(errorMsg{Type: MsgError, Message: ErrRoomNotFound}))
		return
	}

	m.joinRoom(playerID, room)
}

// joinRoom 入座 + 回發 room_joined + 通知在座成員（調用方必須持有 mu）
func (m *Manager) joinRoom(playerID string, room *Room) {
	if !room.AddPlayer(playerID) {
		m.registry.Send(playerID, encode(errorMsg{Type: MsgError, Message: ErrRoomFull}))
		return
	}
	m.registry.SetRoom(playerID, room.ID)

	m.registry.Send(playerID, encode(roomJoinedMsg{
		Type:        MsgRoomJoined,
		RoomID:      room.ID,
		PlayerCount: room.PlayerCount(),
	}))

	room.Broadcast(m.registry, encode(playerJoinedMsg{
		Type:        MsgPlayerJoin,
		PlayerID:    playerID,
		PlayerCount: room.PlayerCount(),
	}), playerID)

	m.logger.Info("玩家加入房間", "room_id", room.ID, "player_id", playerID)
}

// handleQuickMatch 快速撮合
//
// 有可加入的房間（等待中且未滿）就入座，否則退化為建房。
// 先到先得的線性掃描，不做公平性 / 負載均衡。
func (m *Manager) handleQuickMatch(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.findJoinable()
	if room == nil {
		m.createAndJoin(playerID)
		return
	}
	m.joinRoom(playerID, room)
}

// handleLeaveRoom 離開當前房間
//
// 發送者不在任何房間時是無操作（重複 leave、斷線競態都落在這裡）。
// 最後一人離開時立即刪除房間；否則通知剩餘成員。
func (m *Manager) handleLeaveRoom(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.registry.RoomOf(playerID)
	if !ok {
		return
	}

	m.registry.SetRoom(playerID, "")

	room, exists := m.rooms[roomID]
	if !exists {
		return
	}

	if room.RemovePlayer(playerID) {
		m.deleteRoom(roomID)
		m.logger.Info("房間已刪除", "room_id", roomID)
		return
	}

	room.Broadcast(m.registry, encode(playerLeftMsg{
		Type:        MsgPlayerLeft,
		PlayerID:    playerID,
		PlayerCount: room.PlayerCount(),
	}), "")

	m.logger.Info("玩家離開房間", "room_id", roomID, "player_id", playerID)
}

// handleReady 標記準備狀態
//
// 準備是單向的（協議沒有取消準備）。人滿且全員準備時從 waiting
// 轉入 playing 並廣播 game_start——狀態守衛保證這個轉換只發生一次，
// 開局後重複的 ready 不會再觸發第二個 game_start。
func (m *Manager) handleReady(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.roomOfPlayer(playerID)
	if room == nil {
		return
	}

	player := room.Player(playerID)
	if player == nil {
		return
	}

	player.Ready = true

	room.Broadcast(m.registry, encode(playerReadyMsg{
		Type:     MsgPlayerReady,
		PlayerID: playerID,
	}), "")

	if room.Status == StatusWaiting && room.CanStart() {
		room.Status = StatusPlaying
		room.Broadcast(m.registry, encode(gameStartMsg{Type: MsgGameStart}), "")
		m.logger.Info("對局開始", "room_id", room.ID)
	}
}

// handlePlayerUpdate 套用並轉發玩家狀態
//
// 只在對局進行中生效；房間還在等待或發送者已離房時靜默忽略
// （在途更新與離房 / 開局的競態是預期行為）。
// 轉發的是更新後的完整快照，排除發送者本人。
func (m *Manager) handlePlayerUpdate(playerID string, data PlayerUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.roomOfPlayer(playerID)
	if room == nil || room.Status != StatusPlaying {
		return
	}

	snapshot, ok := room.ApplyUpdate(playerID, data)
	if !ok {
		return
	}

	room.Broadcast(m.registry, encode(playerStateMsg{
		Type:     MsgPlayerState,
		PlayerID: playerID,
		State:    snapshot,
	}), playerID)
}

// handleGameEvent 轉發遊戲事件
//
// 純中繼：payload 原樣透傳給同房其他成員，服務器不解讀內容。
func (m *Manager) handleGameEvent(playerID string, event json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.roomOfPlayer(playerID)
	if room == nil {
		return
	}

	room.Broadcast(m.registry, encode(gameEventMsg{
		Type:     MsgGameEvent,
		PlayerID: playerID,
		Event:    event,
	}), playerID)
}

// roomOfPlayer 查找發送者所在房間（調用方必須持有 mu）
//
// 註冊表指標與目錄任一查無都返回 nil（過期引用按無操作處理）。
func (m *Manager) roomOfPlayer(playerID string) *Room {
	roomID, ok := m.registry.RoomOf(playerID)
	if !ok {
		return nil
	}
	return m.rooms[roomID]
}
