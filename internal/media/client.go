package media

import (
	"context"
	"fmt"

	"github.com/nao1215/edgeapi/pkg/httpclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/nao1215/edgeapi/internal/media")

// ProviderFal はfal.aiのプロバイダー名。
const ProviderFal = "fal"

const (
	// imageModelPath は画像生成モデルのパス。
	imageModelPath = "/fal-ai/bytedance/seedream/v4.5/text-to-image"
	// videoModelPath は動画生成モデルのパス。
	videoModelPath = "/fal-ai/bytedance/seedance/v1.5/pro/text-to-video"
)

// 生成パラメータの既定値。
const (
	DefaultImageSize   = "auto_2K"
	DefaultAspectRatio = "16:9"
	DefaultResolution  = "720p"
	DefaultDuration    = "5"
)

// ImageOptions は画像生成の調整パラメータ。空の項目には既定値を使う。
type ImageOptions struct {
	// ImageSize は出力サイズ。既定値はDefaultImageSize。
	ImageSize string
}

// VideoOptions は動画生成の調整パラメータ。空の項目には既定値を使う。
type VideoOptions struct {
	// AspectRatio はアスペクト比。既定値はDefaultAspectRatio。
	AspectRatio string
	// Resolution は解像度。既定値はDefaultResolution。
	Resolution string
	// Duration は秒数。既定値はDefaultDuration。
	Duration string
}

// imageRequest は画像生成APIへのリクエストボディ。
type imageRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size"`
	NumImages int    `json:"num_images"`
}

// videoRequest は動画生成APIへのリクエストボディ。
type videoRequest struct {
	Prompt        string `json:"prompt"`
	AspectRatio   string `json:"aspect_ratio"`
	Resolution    string `json:"resolution"`
	Duration      string `json:"duration"`
	GenerateAudio bool   `json:"generate_audio"`
}

// Client はメディア生成APIのクライアント。
type Client struct {
	// gateway はゲートウェイURLを解決するバインディング。
	gateway Gateway
	// http は生成APIへのHTTPクライアント。
	http *httpclient.Client
}

// NewClient は新しいメディア生成クライアントを生成する。
// hcがnilの場合はタイムアウト無しのクライアントを使う。
func NewClient(gateway Gateway, hc *httpclient.Client) *Client {
	if hc == nil {
		hc = httpclient.New()
	}
	return &Client{gateway: gateway, http: hc}
}

// GenerateImage はプロンプトから画像を生成する。
// 生成APIが2xx以外を返してもエラーにはせず、レスポンスをそのまま返す。
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (*httpclient.Response, error) {
	ctx, span := tracer.Start(ctx, "media.GenerateImage")
	defer span.End()

	body := imageRequest{
		Prompt:    prompt,
		ImageSize: valueOrDefault(opts.ImageSize, DefaultImageSize),
		NumImages: 1,
	}
	return c.post(ctx, span, imageModelPath, body)
}

// GenerateVideo はプロンプトから動画を生成する。
// 生成APIが2xx以外を返してもエラーにはせず、レスポンスをそのまま返す。
func (c *Client) GenerateVideo(ctx context.Context, prompt string, opts VideoOptions) (*httpclient.Response, error) {
	ctx, span := tracer.Start(ctx, "media.GenerateVideo")
	defer span.End()

	body := videoRequest{
		Prompt:        prompt,
		AspectRatio:   valueOrDefault(opts.AspectRatio, DefaultAspectRatio),
		Resolution:    valueOrDefault(opts.Resolution, DefaultResolution),
		Duration:      valueOrDefault(opts.Duration, DefaultDuration),
		GenerateAudio: true,
	}
	return c.post(ctx, span, videoModelPath, body)
}

// post はゲートウェイURLを解決してから生成APIへPOSTする。
func (c *Client) post(ctx context.Context, span trace.Span, modelPath string, body any) (*httpclient.Response, error) {
	base, err := c.gateway.URL(ctx, ProviderFal)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("ゲートウェイURLの解決に失敗: %w", err)
	}

	resp, err := c.http.PostJSON(ctx, base+modelPath, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("生成APIの呼び出しに失敗: %w", err)
	}
	span.SetAttributes(attribute.Int("media.status_code", resp.StatusCode))
	return resp, nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
