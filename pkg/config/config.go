// Package config は各サービスの設定を環境変数と .env ファイルから読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Workspace はエンティティストアサービスの設定。
type Workspace struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行環境（development / production）。
	Env string
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string
	// LiveURL はライブ更新サービスのベースURL。空の場合は変更通知を送らない。
	LiveURL string
	// RelaySecret は内部中継APIへのサービス間トークンの署名鍵。空の場合はトークンを付与しない。
	RelaySecret string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
}

// Live はライブ更新サービスの設定。
type Live struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行環境（development / production）。
	Env string
	// FrontendURL はCORSとWebSocketのOriginチェックで許可するオリジン。
	FrontendURL string
	// TokenSecret はuser_idトークン検証用の秘密鍵。空の場合は検証しない。
	TokenSecret string
	// RelaySecret は内部中継APIのサービス間トークン検証用の秘密鍵。空の場合は検証しない。
	RelaySecret string
	// PingInterval はサーバーからpingを送る間隔。PongWaitより短くなければならない。
	PingInterval time.Duration
	// PongWait はpongを待つ最大時間。超過した接続は切断される。
	PongWait time.Duration
	// WriteWait は1フレームの書き込みに許す最大時間。
	WriteWait time.Duration
	// SendBuffer は接続ごとの送信キューの長さ。
	SendBuffer int
	// MaxMessageBytes はクライアントから受け付ける最大フレームサイズ。
	MaxMessageBytes int64
}

// LoadWorkspace はエンティティストアサービスの設定を読み込む。
func LoadWorkspace() (*Workspace, error) {
	// .env が無くてもエラーにしない
	_ = godotenv.Load()

	cfg := &Workspace{
		Port:         getEnv("PORT", "8081"),
		Env:          getEnv("ENV", "development"),
		DatabasePath: getEnv("DATABASE_PATH", "/data/pensift.db"),
		LiveURL:      getEnv("LIVE_URL", ""),
		RelaySecret:  relaySecret(),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return cfg, nil
}

// Validate は必須設定が揃っているかを検証する。
func (c *Workspace) Validate() error {
	if c.Port == "" {
		return errors.New("PORT が空です")
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH が空です")
	}
	return nil
}

// LoadLive はライブ更新サービスの設定を読み込む。
func LoadLive() (*Live, error) {
	_ = godotenv.Load()

	cfg := &Live{
		Port:            getEnv("PORT", "8082"),
		Env:             getEnv("ENV", "development"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		TokenSecret:     getEnv("LIVE_TOKEN_SECRET", ""),
		RelaySecret:     relaySecret(),
		PingInterval:    getEnvDuration("LIVE_PING_INTERVAL", 54*time.Second),
		PongWait:        getEnvDuration("LIVE_PONG_WAIT", 60*time.Second),
		WriteWait:       getEnvDuration("LIVE_WRITE_WAIT", 10*time.Second),
		SendBuffer:      getEnvInt("LIVE_SEND_BUFFER", 256),
		MaxMessageBytes: int64(getEnvInt("LIVE_MAX_MESSAGE_BYTES", 512*1024)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return cfg, nil
}

// DefaultLive はテストや組み込み用途向けの既定設定を返す。
func DefaultLive() *Live {
	return &Live{
		Port:            "8082",
		Env:             "development",
		FrontendURL:     "http://localhost:3000",
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		SendBuffer:      256,
		MaxMessageBytes: 512 * 1024,
	}
}

// Validate はタイムアウトとバッファの設定値を検証する。
func (c *Live) Validate() error {
	if c.Port == "" {
		return errors.New("PORT が空です")
	}
	if c.PongWait <= 0 || c.WriteWait <= 0 || c.PingInterval <= 0 {
		return errors.New("LIVE_PING_INTERVAL, LIVE_PONG_WAIT, LIVE_WRITE_WAIT は正の値が必要です")
	}
	if c.PingInterval >= c.PongWait {
		return fmt.Errorf("LIVE_PING_INTERVAL(%s) は LIVE_PONG_WAIT(%s) より短くしてください", c.PingInterval, c.PongWait)
	}
	if c.SendBuffer <= 0 {
		return errors.New("LIVE_SEND_BUFFER は1以上が必要です")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("LIVE_MAX_MESSAGE_BYTES は1以上が必要です")
	}
	return nil
}

// IsProduction は本番環境で動作しているかを返す。
func IsProduction(env string) bool {
	return env == "production"
}

// relaySecret はLIVE_RELAY_SECRETを返す。未設定ならLIVE_TOKEN_SECRETを使う。
// 署名側と検証側で同じ規則を使う。
func relaySecret() string {
	return getEnv("LIVE_RELAY_SECRET", getEnv("LIVE_TOKEN_SECRET", ""))
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
