package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服務配置
//
// 三層來源，優先級由低到高：內建預設值 → YAML 配置檔 → 環境變數。
// 部署環境只需要 PORT 環境變數（沿用原服務的約定，預設 3001），
// 其餘選項給測試與進階部署調整。時間類欄位一律以秒為單位。
type Config struct {
	Server ServerConfig `yaml:"server"`
	Room   RoomConfig   `yaml:"room"`
	Logger LoggerConfig `yaml:"logger"`
}

// ServerConfig HTTP 服務器配置
type ServerConfig struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`  // 秒
	WriteTimeout int `yaml:"write_timeout"` // 秒
}

// RoomConfig 房間與清理配置
type RoomConfig struct {
	MaxPlayers    int `yaml:"max_players"`    // 每房間容量（基礎模式 2）
	SweepInterval int `yaml:"sweep_interval"` // 清理掃描週期（秒）
	MaxIdleAge    int `yaml:"max_idle_age"`   // 空房間存活上限（秒）
}

// SweepEvery 清理掃描週期
func (c RoomConfig) SweepEvery() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// MaxAge 空房間存活上限
func (c RoomConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxIdleAge) * time.Second
}

// LoggerConfig 日誌配置
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig 內建預設配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:         3001,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Room: RoomConfig{
			MaxPlayers:    2,
			SweepInterval: 60,
			MaxIdleAge:    300,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig 載入配置
//
// path 為空時跳過配置檔，只套用預設值與環境變數。
// 配置檔中未出現的欄位保持預設值（部分覆寫）。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("解析配置檔失敗: %w", err)
		}
	}

	// 環境變數覆寫（部署平台注入）
	if port := os.Getenv("PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil || val <= 0 || val > 65535 {
			return cfg, fmt.Errorf("無效的 PORT 環境變數: %q", port)
		}
		cfg.Server.Port = val
	}

	if cfg.Room.MaxPlayers < 2 {
		return cfg, fmt.Errorf("每房間容量至少為 2，得到 %d", cfg.Room.MaxPlayers)
	}
	if cfg.Room.SweepInterval <= 0 || cfg.Room.MaxIdleAge <= 0 {
		return cfg, fmt.Errorf("清理週期與空房間存活上限必須為正數")
	}

	return cfg, nil
}
