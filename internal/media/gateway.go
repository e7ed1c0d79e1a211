package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultGatewayBaseURL はAIゲートウェイのベースURLの既定値。
const DefaultGatewayBaseURL = "https://gateway.ai.cloudflare.com/v1"

// DefaultGatewayName はAIゲートウェイ名の既定値。
const DefaultGatewayName = "website-foundation"

// ErrGatewayNotConfigured はゲートウェイの設定が不足している場合のエラー。
var ErrGatewayNotConfigured = errors.New("AIゲートウェイが設定されていません")

// Gateway はプロバイダーごとのゲートウェイベースURLを解決するバインディング。
type Gateway interface {
	URL(ctx context.Context, provider string) (string, error)
}

// StaticGateway は設定値からゲートウェイURLを組み立てるGateway。
// URLは {BaseURL}/{AccountID}/{Name}/{provider} の形になる。
type StaticGateway struct {
	// BaseURL はゲートウェイのベースURL。空の場合はDefaultGatewayBaseURL。
	BaseURL string
	// AccountID はアカウントID。
	AccountID string
	// Name はゲートウェイ名。空の場合はDefaultGatewayName。
	Name string
}

// URL はプロバイダーのゲートウェイベースURLを返す。末尾のスラッシュは付かない。
func (g StaticGateway) URL(_ context.Context, provider string) (string, error) {
	if g.AccountID == "" {
		return "", fmt.Errorf("アカウントIDが空: %w", ErrGatewayNotConfigured)
	}
	if provider == "" {
		return "", fmt.Errorf("プロバイダーが空: %w", ErrGatewayNotConfigured)
	}

	base := g.BaseURL
	if base == "" {
		base = DefaultGatewayBaseURL
	}
	name := g.Name
	if name == "" {
		name = DefaultGatewayName
	}

	u, err := url.JoinPath(strings.TrimRight(base, "/"), g.AccountID, name, provider)
	if err != nil {
		return "", fmt.Errorf("ゲートウェイURLの組み立てに失敗: %w", err)
	}
	return u, nil
}
