// Package telemetry はOpenTelemetryのトレース出力を初期化する。
//
// 外部呼び出し（JWKS取得、メール送信、メディア生成）の所要時間と結果を
// スパンとして記録するために使用する。エクスポーターが "none" の場合は
// グローバルのTracerProviderを変更しないため、各パッケージのスパンはno-opになる。
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc はエクスポーターに残ったスパンを書き出して終了する関数。
type ShutdownFunc func(context.Context) error

// Config はトレース出力の設定。
type Config struct {
	// ServiceName はリソース属性 service.name に設定する名前。
	ServiceName string
	// Exporter はエクスポーターの種類（"none" または "stdout"）。
	Exporter string
	// Writer はstdoutエクスポーターの出力先。nilの場合はos.Stdoutを使う。
	Writer io.Writer
}

// Init は設定に従ってTracerProviderを生成し、グローバルに登録する。
func Init(cfg Config) (ShutdownFunc, error) {
	switch cfg.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		return initStdout(cfg)
	default:
		return nil, fmt.Errorf("未対応のテレメトリエクスポーターです: %s", cfg.Exporter)
	}
}

// initStdout は標準出力へスパンを書き出すTracerProviderを登録する。
func initStdout(cfg Config) (ShutdownFunc, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("トレースエクスポーターの生成に失敗: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
