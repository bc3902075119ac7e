package internal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// 系統設計問題：
//   如何追蹤所有存活的客戶端連接，並支持按身份定向投遞消息？
//
// 核心挑戰：
//   1. 身份分配：連接是匿名的，進程內唯一的身份在連接建立時生成
//   2. 投遞競態：消息投遞與連接關閉天然競爭（斷線瞬間的廣播）
//   3. 所有權：連接只屬於註冊表，房間只持有身份（非擁有引用）
//
// 設計方案：
//   ✅ UUID 身份 - 進程生命週期內唯一，無需協調
//   ✅ 盡力投遞 - 目標已消失時靜默丟棄（預期競態，非錯誤）
//   ✅ 葉節點鎖 - 註冊表自帶 RWMutex，從不回呼上層（無死鎖風險）

// Sender 連接的發送端抽象
//
// 由 WebSocket 傳輸層實現（非阻塞寫入），測試中以記錄型假實現替代。
// Send 返回 false 表示消息被丟棄（緩衝滿或連接已關閉），
// 調用方不得因此失敗——背壓是傳輸層的問題，不是協調器的問題。
type Sender interface {
	Send(message []byte) bool
}

// Registry 連接註冊表
//
// 進程級單一實例，維護 playerID → 連接 的映射與其當前房間指標。
// 房間成員列表只存身份字串，廣播時經由註冊表尋址，
// 確保連接的生命週期只有一個擁有者。
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*connEntry
	logger *slog.Logger
}

type connEntry struct {
	sender Sender
	roomID string // 空字串表示不在任何房間
}

// NewRegistry 創建連接註冊表
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*connEntry),
		logger: logger,
	}
}

// Register 註冊新連接並分配身份
//
// 身份格式沿用 player_ 前綴 + UUID，進程內唯一。不會失敗。
func (r *Registry) Register(sender Sender) string {
	id := fmt.Sprintf("player_%s", uuid.NewString())

	r.mu.Lock()
	r.conns[id] = &connEntry{sender: sender}
	r.mu.Unlock()

	return id
}

// Unregister 移除連接（冪等）
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// SetRoom 更新連接的當前房間
//
// roomID 為空字串表示離開房間。目標連接已斷開時記錄日誌後忽略
// （斷線與協議處理的競態是預期行為，不是錯誤）。
func (r *Registry) SetRoom(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.conns[id]
	if !exists {
		r.logger.Debug("設置房間時連接已不存在", "player_id", id, "room_id", roomID)
		return
	}
	entry.roomID = roomID
}

// RoomOf 查詢連接的當前房間
func (r *Registry) RoomOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.conns[id]
	if !exists || entry.roomID == "" {
		return "", false
	}
	return entry.roomID, true
}

// Send 向指定連接投遞消息
//
// 盡力而為：連接已不存在或傳輸層拒收時靜默丟棄。
// 投遞失敗從不向其他成員的請求傳播。
func (r *Registry) Send(id string, message []byte) {
	r.mu.RLock()
	entry, exists := r.conns[id]
	r.mu.RUnlock()

	if !exists || message == nil {
		return
	}

	if !entry.sender.Send(message) {
		r.logger.Debug("消息投遞被丟棄", "player_id", id)
	}
}

// Count 當前連接總數
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
