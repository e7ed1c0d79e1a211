package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix は読み込み対象の環境変数のプレフィックス。
const envPrefix = "EDGEAPI_"

// Config はedgeapi全体の設定。
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Access    AccessConfig    `koanf:"access"`
	Mail      MailConfig      `koanf:"mail"`
	Media     MediaConfig     `koanf:"media"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `koanf:"port" validate:"required,numeric"`
	// CORSAllowedOrigins はCORSを許可するオリジンのカンマ区切りリスト。
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
}

// AllowedOrigins はCORSを許可するオリジンの一覧を返す。空要素は除く。
func (s ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(s.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// AccessConfig はアクセストークン検証の信頼設定。
type AccessConfig struct {
	// TeamDomain はチームドメイン（{team}.cloudflareaccess.com の {team}）。
	TeamDomain string `koanf:"team_domain" validate:"required"`
	// PolicyAudience はトークンのaudに期待する値。
	PolicyAudience string `koanf:"policy_aud" validate:"required"`
}

// MailConfig はメール送信の設定。
type MailConfig struct {
	// Transport は配送方式。log, smtp, resend のいずれか。
	Transport string `koanf:"transport" validate:"oneof=log smtp resend"`
	// ContactEmail は問い合わせの送信先。
	ContactEmail string `koanf:"contact_email" validate:"required,email"`
	// From は送信元アドレス。空の場合はリクエストのホスト名から組み立てる。
	From         string `koanf:"from" validate:"omitempty,email"`
	SMTPAddr     string `koanf:"smtp_addr" validate:"required_if=Transport smtp"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	ResendAPIKey string `koanf:"resend_api_key" validate:"required_if=Transport resend"`
}

// MediaConfig はメディア生成の設定。
type MediaConfig struct {
	GatewayBaseURL string `koanf:"gateway_base_url" validate:"required,url"`
	AccountID      string `koanf:"account_id" validate:"required"`
	GatewayName    string `koanf:"gateway_name" validate:"required"`
}

// TelemetryConfig はトレースの設定。
type TelemetryConfig struct {
	// Exporter はスパンの出力先。none または stdout。
	Exporter    string `koanf:"exporter" validate:"oneof=none stdout"`
	ServiceName string `koanf:"service_name" validate:"required"`
}

// defaults は設定の既定値。
var defaults = map[string]any{
	"server.port":            "8080",
	"log.level":              "info",
	"log.format":             "json",
	"mail.transport":         "log",
	"media.gateway_base_url": "https://gateway.ai.cloudflare.com/v1",
	"media.gateway_name":     "website-foundation",
	"telemetry.exporter":     "none",
	"telemetry.service_name": "edgeapi",
}

// Load は設定を読み込んで検証する。pathが空の場合はファイルを読まない。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("既定値の設定に失敗: %w", err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return &cfg, nil
}

// envKey は環境変数名を設定キーに変換する。
// EDGEAPI_MEDIA__ACCOUNT_ID は media.account_id になる。
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}
