package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何在不阻塞協調器的前提下，維護每個客戶端的持久雙向連接？
//
// 核心挑戰：
//   1. 慢客戶端：投遞絕不能讓協調器等待無響應的對端
//   2. 死連接：網絡異常 / 瀏覽器崩潰時服務器要能察覺並回收
//   3. 關閉競態：廣播與連接關閉同時發生是常態
//
// 設計方案：
//   ✅ 每連接讀寫 goroutine - 讀循環驅動協議，寫循環獨佔 socket 寫入
//   ✅ 緩衝發送通道 - 非阻塞投遞，緩衝滿即丟（背壓交給傳輸層）
//   ✅ Ping/Pong 心跳 - 54s Ping / 60s 讀超時（避開代理的 60s 閾值）
//   ✅ sync.Once 關閉 - 發送通道只關一次，杜絕 double close panic

const (
	writeWait  = 10 * time.Second // 單次寫入期限
	pongWait   = 60 * time.Second // 讀超時（收到 Pong 重置）
	pingPeriod = 54 * time.Second // Ping 間隔（必須小於 pongWait）
	sendBuffer = 256              // 每連接發送緩衝
)

// Hub WebSocket 接入層
//
// 負責連接升級、讀寫 goroutine 的啟動與全體連接的關閉。
// 協議語義全部委託給 Manager；Hub 只做傳輸。
type Hub struct {
	manager *Manager
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Conn 一條客戶端連接
//
// 實現 Sender：Send 是對緩衝通道的非阻塞寫入，
// 通道滿或連接已關閉時返回 false（消息被丟棄）。
type Conn struct {
	playerID string
	ws       *websocket.Conn
	send     chan []byte

	closed    bool
	closeMu   sync.Mutex
	closeOnce sync.Once
}

// NewHub 創建 WebSocket 接入層
func NewHub(manager *Manager, logger *slog.Logger) *Hub {
	return &Hub{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 客戶端嵌在 Telegram WebView 內，來源不固定
				return true
			},
		},
		conns: make(map[*Conn]struct{}),
	}
}

// ServeWS 處理 WebSocket 升級請求
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	conn := &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}

	hub.track(conn)

	// 註冊連接並分配身份（此後協調器即可向它投遞）
	conn.playerID = hub.manager.Connect(conn)

	go conn.writePump(hub)
	go conn.readPump(hub)
}

// track 登記連接
func (hub *Hub) track(conn *Conn) {
	hub.mu.Lock()
	hub.conns[conn] = struct{}{}
	hub.mu.Unlock()
}

// untrack 移除連接登記
func (hub *Hub) untrack(conn *Conn) {
	hub.mu.Lock()
	delete(hub.conns, conn)
	hub.mu.Unlock()
}

// Stop 關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	conns := make([]*Conn, 0, len(hub.conns))
	for conn := range hub.conns {
		conns = append(conns, conn)
	}
	hub.conns = make(map[*Conn]struct{})
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.close()
		conn.ws.Close()
	}

	hub.logger.Info("WebSocket 接入層已停止")
}

// Send 非阻塞投遞（實現 Sender）
func (c *Conn) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		// 緩衝滿：丟棄而非阻塞（慢客戶端不能拖累協調器）
		return false
	}
}

// close 標記連接關閉並關閉發送通道（只執行一次）
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		c.closeMu.Unlock()
		close(c.send)
	})
}

// readPump 讀取客戶端消息
//
// 每條文本幀轉交協調器處理。讀循環退出（斷線、超時）即視為
// leave_room + 註銷，與客戶端主動離房走同一條路徑。
func (c *Conn) readPump(hub *Hub) {
	defer func() {
		hub.untrack(c)
		hub.manager.Disconnect(c.playerID)
		c.close()
		c.ws.Close()
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Error("WebSocket 讀取錯誤", "error", err, "player_id", c.playerID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			hub.manager.HandleMessage(c.playerID, message)
		}
	}
}

// writePump 寫入消息到客戶端
//
// 獨佔 socket 的寫入端：業務消息來自 send 通道，心跳來自定時器。
func (c *Conn) writePump(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 發送通道已關閉，禮貌地告知對端
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量清空積壓，減少系統調用
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.ws.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
