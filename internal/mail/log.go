package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogTransport はメールを配送せずにログへ出力する開発用のTransport。
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport は新しいLogTransportを生成する。
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send はエンベロープをログに出力する。常に成功する。
func (t *LogTransport) Send(_ context.Context, env Envelope) error {
	t.logger.Info().
		Str("from", env.From).
		Str("to", env.To).
		Int("size", len(env.Raw)).
		Str("raw", string(env.Raw)).
		Msg("メールを送信しました（ログ出力のみ）")
	return nil
}
