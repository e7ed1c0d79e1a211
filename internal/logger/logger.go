// Package logger はzerologのロガーを設定から組み立てる。
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config はロガーの設定。
type Config struct {
	// Level はログレベル（trace, debug, info, warn, error）。空の場合はinfo。
	Level string
	// Format は出力形式。console の場合は人間向けの形式、それ以外はJSON。
	Format string
	// Writer は出力先。nilの場合は標準エラー出力。
	Writer io.Writer
}

// New は設定に従ってロガーを生成する。
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("ログレベルの解析に失敗: %w", err)
		}
		level = parsed
	}

	var w io.Writer = os.Stderr
	if cfg.Writer != nil {
		w = cfg.Writer
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
