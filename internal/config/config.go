package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先のDSN
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv string // dev/prod

	// Mercado Pago
	MPAccessToken   string // APIアクセストークン
	MPBaseURL       string // sandbox/本番の切替はURLで行う
	MPWebhookSecret string // webhook署名シークレット（devのみ空を許可）
	NotifyURL       string // ゲートウェイに渡す通知先URL

	// 支払い待ちの有効期限
	PaymentWindow time.Duration
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv: getenv("GO_ENV", "dev"),

		MPAccessToken:   os.Getenv("MP_ACCESS_TOKEN"),
		MPBaseURL:       getenv("MP_BASE_URL", "https://api.mercadopago.com"),
		MPWebhookSecret: os.Getenv("MP_WEBHOOK_SECRET"),
		NotifyURL:       os.Getenv("NOTIFY_URL"),
	}

	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPort = pgPort

	windowMin, err := atoiDefault("PAYMENT_WINDOW_MINUTES", 30)
	if err != nil {
		return Config{}, err
	}
	if windowMin < 1 {
		return Config{}, fmt.Errorf("PAYMENT_WINDOW_MINUTES must be >= 1")
	}
	cfg.PaymentWindow = time.Duration(windowMin) * time.Minute

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MPAccessToken == "" {
		return Config{}, fmt.Errorf("MP_ACCESS_TOKEN is required")
	}
	if cfg.NotifyURL == "" {
		return Config{}, fmt.Errorf("NOTIFY_URL is required")
	}
	//本番はwebhook署名必須。devは空でも動くがreconciler側で警告を出す。
	if cfg.IsProd() && cfg.MPWebhookSecret == "" {
		return Config{}, fmt.Errorf("MP_WEBHOOK_SECRET is required in prod")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
