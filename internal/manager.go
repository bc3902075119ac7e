package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 系統設計問題：
//   如何管理進程內所有對戰房間的生命週期，並回收被遺棄的空房間？
//
// 核心挑戰：
//   1. 單寫者紀律：協議處理、HTTP 查詢、定時清理都會觸碰房間目錄
//   2. 確定性撮合：quick_match 的掃描順序必須每次運行內可預測（可測試）
//   3. 資源回收：空房間超齡即刪，但進行中的對局無論多久都不能被清理
//   4. 零狀態持久化：全部狀態在內存，進程重啟即丟失（設計如此）
//
// 設計方案：
//   ✅ 單一互斥鎖 - 目錄與所有房間共用一把鎖（低競爭下粗粒度足夠）
//   ✅ 插入順序切片 - map 迭代順序隨機，另維護有序鍵確保撮合確定性
//   ✅ 清理 goroutine - ticker + stopCh + WaitGroup，每次掃描獨立
//   ✅ 空房間即刪 - 最後一人離開立即刪除，目錄絕不暴露零人房間

// Manager 房間協調器
//
// 進程級單一實例，擁有房間目錄、連接註冊表與清理 goroutine。
// 所有房間變更（協議處理器與清理掃描）都持有 mu，
// 在多 goroutine 運行時之上重建了單寫者語義。
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room // roomID -> Room
	order []string         // 房間插入順序（撮合掃描與列表的確定性來源）

	registry *Registry
	cfg      Config
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager 創建房間協調器並啟動清理 goroutine
func NewManager(registry *Registry, cfg Config, logger *slog.Logger) *Manager {
	m := &Manager{
		rooms:    make(map[string]*Room),
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// Stop 停止協調器
//
// 關閉清理 goroutine 並等待其退出。連接的關閉由傳輸層負責。
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("房間協調器已停止")
}

// createRoom 創建房間並登記到目錄（調用方必須持有 mu）
func (m *Manager) createRoom(now time.Time) *Room {
	roomID := fmt.Sprintf("room_%s", uuid.NewString())
	room := NewRoom(roomID, m.cfg.Room.MaxPlayers, now)

	m.rooms[roomID] = room
	m.order = append(m.order, roomID)

	return room
}

// deleteRoom 從目錄移除房間（調用方必須持有 mu，冪等）
func (m *Manager) deleteRoom(roomID string) {
	if _, exists := m.rooms[roomID]; !exists {
		return
	}

	delete(m.rooms, roomID)
	for i, id := range m.order {
		if id == roomID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// findJoinable 撮合掃描（調用方必須持有 mu）
//
// 按插入順序返回第一個「等待中且未滿」的房間；沒有則返回 nil。
// 線性掃描、先到先得，不做負載均衡（沿用原協議語義）。
func (m *Manager) findJoinable() *Room {
	for _, id := range m.order {
		room := m.rooms[id]
		if room.Status == StatusWaiting && !room.IsFull() {
			return room
		}
	}
	return nil
}

// sweepLoop 定時清理被遺棄的空房間
//
// 每個 tick 獨立：單次掃描的任何狀況都不影響後續掃描。
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Room.SweepEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

// Sweep 執行一次清理掃描
//
// 刪除「超過閾值且無人」的房間。兩個條件缺一不可：
// 有人的房間無論多老都不刪（長時間對局不受清理影響），
// 年輕的空房間留給撮合複用。
func (m *Manager) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []string
	for roomID, room := range m.rooms {
		if now.Sub(room.CreatedAt) > m.cfg.Room.MaxAge() && room.PlayerCount() == 0 {
			stale = append(stale, roomID)
		}
	}

	for _, roomID := range stale {
		m.deleteRoom(roomID)
		m.logger.Info("空房間已過期清理", "room_id", roomID)
	}
}

// GetRoomInfo 查詢單一房間摘要（HTTP 側信道用）
func (m *Manager) GetRoomInfo(roomID string) (RoomInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return RoomInfo{}, false
	}
	return room.Info(), true
}

// ListRooms 列出所有房間摘要（插入順序）
func (m *Manager) ListRooms() []RoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]RoomInfo, 0, len(m.order))
	for _, id := range m.order {
		infos = append(infos, m.rooms[id].Info())
	}
	return infos
}

// Stats 統計資訊（健康檢查用）
//
// players 計數是全部存活連接（含尚未進房的），與原服務一致。
func (m *Manager) Stats() (rooms, players int) {
	m.mu.Lock()
	rooms = len(m.rooms)
	m.mu.Unlock()

	return rooms, m.registry.Count()
}
