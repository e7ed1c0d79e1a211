package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edgeapi/internal/media"
	"github.com/nao1215/edgeapi/pkg/httpclient"
	"github.com/nao1215/edgeapi/pkg/middleware"
)

// generationKind は生成の種類。エラーメッセージに使う。
type generationKind string

const (
	kindImage generationKind = "Image"
	kindVideo generationKind = "Video"
)

// failedMessage は外部サービスが失敗を返した場合のメッセージ。
func (k generationKind) failedMessage() string {
	return string(k) + " generation failed"
}

// unexpectedMessage は呼び出しそのものが失敗した場合のメッセージ。
func (k generationKind) unexpectedMessage() string {
	return "Unexpected error during " + strings.ToLower(string(k)) + " generation"
}

// handleGenerateImage は画像生成を受け付けるハンドラを返す。
func (s *Server) handleGenerateImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req imageRequest
		if err := bindJSONBody(c, &req); err != nil {
			abortWithError(c, malformedInput(msgInvalidJSON, err))
			return
		}
		if apiErr := validationError(validate.Struct(req), promptViolations); apiErr != nil {
			abortWithError(c, apiErr)
			return
		}

		ctx := context.WithoutCancel(c.Request.Context())
		resp, err := s.media.GenerateImage(ctx, req.Prompt, media.ImageOptions{ImageSize: req.ImageSize})
		respondGeneration(c, kindImage, resp, err)
	}
}

// handleGenerateVideo は動画生成を受け付けるハンドラを返す。
func (s *Server) handleGenerateVideo() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req videoRequest
		if err := bindJSONBody(c, &req); err != nil {
			abortWithError(c, malformedInput(msgInvalidJSON, err))
			return
		}
		if apiErr := validationError(validate.Struct(req), promptViolations); apiErr != nil {
			abortWithError(c, apiErr)
			return
		}

		ctx := context.WithoutCancel(c.Request.Context())
		resp, err := s.media.GenerateVideo(ctx, req.Prompt, media.VideoOptions{
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
			Duration:    req.Duration,
		})
		respondGeneration(c, kindVideo, resp, err)
	}
}

// respondGeneration は生成APIの結果をレスポンスに変換する。
//   - 呼び出しの失敗、またはJSONでない応答は500
//   - 2xx以外はそのステータスで、応答ボディをdetailsに入れて返す
//   - 2xxは200で応答ボディをそのまま返す
func respondGeneration(c *gin.Context, kind generationKind, resp *httpclient.Response, err error) {
	if err != nil {
		abortWithError(c, delegationFailure(kind.unexpectedMessage(), err))
		return
	}
	if !json.Valid(resp.Body) {
		abortWithError(c, delegationFailure(kind.unexpectedMessage(),
			fmt.Errorf("生成APIの応答がJSONではありません（ステータス%d）", resp.StatusCode)))
		return
	}
	if !resp.OK() {
		abortWithError(c, upstreamRejection(resp.StatusCode, kind.failedMessage(), resp.Body))
		return
	}

	event := middleware.Logger(c).Info().Str("kind", string(kind))
	if id, ok := middleware.GetIdentity(c); ok {
		event = event.Str("email", id.Email)
	}
	event.Msg("生成に成功")
	c.Data(http.StatusOK, "application/json", resp.Body)
}
