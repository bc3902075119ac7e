package internal

import (
	"time"
)

// 系統設計問題：
//   如何封裝一場對戰的成員資格與瞬態狀態，並向全體成員扇出廣播？
//
// 核心挑戰：
//   1. 容量約束：len(players) ≤ capacity 在任何時刻都必須成立
//   2. 開局條件：人滿且全員準備才能從 waiting 轉入 playing
//   3. 回音排除：轉發玩家自己的動作時不能回送給本人
//   4. 單寫者：所有變更經由 Manager 的單一互斥鎖串行化
//
// 設計方案：
//   ✅ 有序切片 - 成員按加入順序排列（廣播與列表順序確定）
//   ✅ 顯式狀態機 - waiting → playing（finished 保留，協議暫不觸發）
//   ✅ 盡力廣播 - 單個成員投遞失敗不中斷其餘成員

// RoomStatus 房間狀態
//
// 狀態轉換規則：
//   - waiting → playing：人滿且全員準備（ready 消息觸發，即時檢查）
//   - playing → finished：保留給未來的對局結束語義，目前協議不觸發；
//     房間在 playing 狀態停留直到被清空刪除
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"  // 等待玩家加入 / 準備
	StatusPlaying  RoomStatus = "playing"  // 對局進行中
	StatusFinished RoomStatus = "finished" // 保留狀態（見上）
)

// PlayerState 玩家在房間內的瞬態狀態
//
// 服務器信任客戶端上報的位置 / 血量 / 分數（中繼語義，不做權威模擬）。
type PlayerState struct {
	ID       string   `json:"player_id"`
	Position Position `json:"position"`
	Health   int      `json:"health"`
	Score    int      `json:"score"`
	Ready    bool     `json:"ready"`
}

// Room 對戰房間
//
// 併發模型：Room 自身不帶鎖。所有讀寫（包括清理掃描）都在 Manager
// 的單一互斥鎖之下串行執行——規模上每房間只有個位數玩家，
// 粗粒度鎖換來的是免除鎖序問題與狀態競態（單寫者紀律）。
type Room struct {
	ID         string
	MaxPlayers int
	Status     RoomStatus
	CreatedAt  time.Time

	players []*PlayerState // 加入順序 = 切片順序
}

// NewRoom 創建房間
func NewRoom(id string, maxPlayers int, now time.Time) *Room {
	return &Room{
		ID:         id,
		MaxPlayers: maxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  now,
		players:    make([]*PlayerState, 0, maxPlayers),
	}
}

// AddPlayer 加入玩家
//
// 房間已滿返回 false 且不改變任何狀態（容量不變式）。
// 新玩家以預設狀態加入：原點座標、血量 100、分數 0、未準備。
func (r *Room) AddPlayer(playerID string) bool {
	if len(r.players) >= r.MaxPlayers {
		return false
	}

	r.players = append(r.players, &PlayerState{
		ID:     playerID,
		Health: 100,
	})
	return true
}

// RemovePlayer 移除玩家
//
// 返回值表示房間是否因此變空（空房間應立即被目錄刪除）。
// 玩家不在房間內時是無操作（冪等，配合斷線競態）。
func (r *Room) RemovePlayer(playerID string) bool {
	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	return len(r.players) == 0
}

// Player 查找玩家
func (r *Room) Player(playerID string) *PlayerState {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// PlayerCount 玩家數量
func (r *Room) PlayerCount() int {
	return len(r.players)
}

// IsFull 房間是否已滿
func (r *Room) IsFull() bool {
	return len(r.players) >= r.MaxPlayers
}

// CanStart 是否滿足開局條件：人滿且全員準備
func (r *Room) CanStart() bool {
	if len(r.players) != r.MaxPlayers {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Broadcast 向房間成員扇出消息
//
// excludeID 非空時跳過該成員（避免把發送者的動作回送給本人）。
// 經由註冊表尋址投遞，單個成員投遞失敗不影響其餘成員。
func (r *Room) Broadcast(registry *Registry, message []byte, excludeID string) {
	for _, p := range r.players {
		if p.ID == excludeID {
			continue
		}
		registry.Send(p.ID, message)
	}
}

// ApplyUpdate 套用客戶端上報的部分狀態更新
//
// 只覆寫 update 中實際提供的欄位（nil 指標 = 未提供），
// 返回更新後的完整快照供廣播使用。玩家不在房間時返回 false。
func (r *Room) ApplyUpdate(playerID string, update PlayerUpdate) (PlayerSnapshot, bool) {
	p := r.Player(playerID)
	if p == nil {
		return PlayerSnapshot{}, false
	}

	if update.Position != nil {
		p.Position = *update.Position
	}
	if update.Health != nil {
		p.Health = *update.Health
	}
	if update.Score != nil {
		p.Score = *update.Score
	}

	return PlayerSnapshot{
		Position: p.Position,
		Health:   p.Health,
		Score:    p.Score,
	}, true
}

// RoomInfo 房間列表條目（HTTP 側信道用）
type RoomInfo struct {
	ID          string     `json:"id"`
	PlayerCount int        `json:"playerCount"`
	MaxPlayers  int        `json:"maxPlayers"`
	GameState   RoomStatus `json:"gameState"`
}

// Info 生成房間摘要
func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:          r.ID,
		PlayerCount: len(r.players),
		MaxPlayers:  r.MaxPlayers,
		GameState:   r.Status,
	}
}
