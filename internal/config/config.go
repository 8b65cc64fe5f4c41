package config

import (
	"encoding/base64"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port string }
type DBCfg struct{ DSN string }
type RedisCfg struct{ Addr string }

type GatewayCfg struct {
	BaseURL    string
	TimeoutSec int
}

type WebhookCfg struct {
	PollEverySec int
	BatchSize    int
}

type SecurityCfg struct {
	AESKey     []byte
	AdminToken string
	APIToken   string
}

type Cfg struct {
	App     AppCfg
	DB      DBCfg
	Redis   RedisCfg
	Gateway GatewayCfg
	Webhook WebhookCfg
	Sec     SecurityCfg
}

// Load reads configuration from the environment (and .env if present)
// and fails fast on anything required.
func Load() Cfg {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("GATEWAY_BASE_URL", "https://api.gateway.test")
	viper.SetDefault("GATEWAY_TIMEOUT_SEC", 30)
	viper.SetDefault("WEBHOOK_POLL_EVERY_SEC", 2)
	viper.SetDefault("WEBHOOK_BATCH_SIZE", 50)
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("API_TOKEN", "")

	key, keyErr := base64.StdEncoding.DecodeString(viper.GetString("AES_256_KEY_BASE64"))

	cfg := Cfg{
		App: AppCfg{
			Env:  viper.GetString("APP_ENV"),
			Port: viper.GetString("APP_PORT"),
		},
		DB:    DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: viper.GetString("REDIS_ADDR")},
		Gateway: GatewayCfg{
			BaseURL:    viper.GetString("GATEWAY_BASE_URL"),
			TimeoutSec: viper.GetInt("GATEWAY_TIMEOUT_SEC"),
		},
		Webhook: WebhookCfg{
			PollEverySec: viper.GetInt("WEBHOOK_POLL_EVERY_SEC"),
			BatchSize:    viper.GetInt("WEBHOOK_BATCH_SIZE"),
		},
		Sec: SecurityCfg{
			AESKey:     key,
			AdminToken: viper.GetString("ADMIN_TOKEN"),
			APIToken:   viper.GetString("API_TOKEN"),
		},
	}

	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if keyErr != nil || len(cfg.Sec.AESKey) != 32 {
		log.Fatal().Msg("AES_256_KEY_BASE64 must be a valid 32-byte base64 key")
	}
	return cfg
}
