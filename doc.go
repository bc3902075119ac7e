// Package relay 提供了一個多人對戰遊戲的即時中繼服務器。
//
// 實現了瀏覽器射擊遊戲的房間會話協調器：接納匿名的持久連接，
// 把玩家分組到容量受限的房間，追蹤房間生命週期，並以適當的
// 排除規則轉發玩家狀態與遊戲事件。
//
// 房間會話協調
//
// 提供完整的撮合與會話管理：
//   - 建房 / 加入 / 快速撮合（先到先得的線性掃描）
//   - 準備機制：人滿且全員準備後自動開局
//   - 玩家狀態中繼：位置 / 血量 / 分數（信任客戶端上報）
//   - 遊戲事件透傳（服務器不解讀內容）
//   - 空房間定期回收
//
// # WebSocket 通訊
//
// 每客戶端一條持久雙向連接，每幀一條 JSON 消息 { type, data }：
//   - 心跳檢測（Ping/Pong，54s/60s）
//   - 單播與房間級廣播（可排除發送者）
//   - 非阻塞投遞：慢客戶端的消息被丟棄而非拖累全房
//
// 併發安全設計
//
// 協調器以單寫者紀律運行：
//   - 單一互斥鎖覆蓋房間目錄與所有房間（粗粒度，低競爭場景）
//   - 同一條入站消息的全部廣播在臨界區內完成（程序序投遞）
//   - 清理掃描與協議處理共用同一把鎖，互不交錯
//   - 連接註冊表為葉節點鎖，從不回呼上層
//
// 錯誤處理
//
// 分級策略：
//   - 協議錯誤（房間不存在 / 已滿）只回給發送者，從不斷開連接
//   - 畸形消息記錄後丟棄，連接保持打開
//   - 過期引用（離房後在途的更新）靜默忽略
//   - 投遞失敗被吞掉，從不傳播給其他成員
//
// 使用範例
//
// 啟動服務器：
//
//	registry := internal.NewRegistry(logger)
//	manager := internal.NewManager(registry, cfg, logger)
//	hub := internal.NewHub(manager, logger)
//	handler := internal.NewHandler(manager, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", handler.Routes())
//	mux.HandleFunc("/ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":3001", mux))
//
// 客戶端連接：
//
//	ws, err := websocket.Dial("ws://localhost:3001/ws", "", "http://localhost/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ws.Close()
//	// 收到 {"type":"connected","playerId":"player_..."} 後即可發送
//	// {"type":"quick_match"} 進行撮合
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Hub 層：WebSocket 升級與讀寫 goroutine（只做傳輸）
//   - Manager 層：房間目錄、協議處理、空房間回收
//   - Registry 層：連接身份與定向投遞
//   - Room 層：成員資格、開局條件、廣播扇出
//
// 配置選項
//
// 支援多種運行時配置：
//   - PORT 環境變數：監聽端口（預設 3001）
//   - -config：YAML 配置檔（容量、清理週期、超時）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 監控與除錯
//
// 內建唯讀查詢接口：
//   - GET /api/health：狀態、房間數、在線人數
//   - GET /api/rooms：全部房間的摘要列表
//
// 非目標
//
// 刻意不做的事：
//   - 權威遊戲模擬（信任客戶端上報，不做反作弊驗證）
//   - 任何持久化（全部狀態在內存，進程重啟即丟失）
//   - 跨進程擴展（單協調器進程，無分片）
package relay
