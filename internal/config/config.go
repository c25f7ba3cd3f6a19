// Package config は環境変数からサーバー設定を読み込む。
package config

import (
	"os"
	"strings"
	"time"
)

// defaultAllowOrigins はCORSで許可するデフォルトのオリジン一覧。
// ローカル開発用のViteサーバーと本番のフロントエンドを許可する。
var defaultAllowOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
	"https://friend-nest.web.app",
	"https://friend-nest.firebaseapp.com",
}

// Config はサーバーの起動設定を表す。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string
	// JWTSecret は認証トークンの署名用秘密鍵。
	JWTSecret string
	// TokenTTL は認証トークンの有効期間。
	TokenTTL time.Duration
	// Production は本番環境フラグ。Cookieの属性に影響する。
	Production bool
	// AllowOrigins はCORSで許可するオリジンの一覧。
	AllowOrigins []string
}

// Load は環境変数から設定を読み込む。
// 未設定の項目にはローカル開発用のデフォルト値を使用する。
func Load() Config {
	return Config{
		Port:         envString("PORT", "5000"),
		DBPath:       envString("FRIENDNEST_DB", "friendnest.db"),
		JWTSecret:    envString("JWT_SECRET", "dev-secret-key"),
		TokenTTL:     envDuration("TOKEN_TTL", 365*24*time.Hour),
		Production:   os.Getenv("APP_ENV") == "production",
		AllowOrigins: envStrings("ALLOW_ORIGINS", defaultAllowOrigins),
	}
}

// envString は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration は環境変数をtime.Durationとして取得する。
// 未設定またはパース不能な場合はデフォルト値を返す。
func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envStrings はカンマ区切りの環境変数を文字列スライスとして取得する。
func envStrings(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
