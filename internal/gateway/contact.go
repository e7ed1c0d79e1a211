package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/nao1215/edgeapi/internal/mail"
	"github.com/nao1215/edgeapi/pkg/middleware"
	"github.com/nao1215/edgeapi/pkg/sanitize"
)

// handleContact は問い合わせフォームを受け付けるハンドラを返す。
// ハニーポットが埋まっている場合は送信せずに成功を返す。
func (s *Server) handleContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readJSONBody(c)
		if err != nil {
			abortWithError(c, malformedInput(msgInvalidJSON, err))
			return
		}

		if honeypotFilled(raw) {
			middleware.Logger(c).Info().Msg("ハニーポットが入力されたため送信をスキップ")
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		var req contactRequest
		if err := binding.JSON.BindBody(raw, &req); err != nil {
			abortWithError(c, malformedInput(msgInvalidJSON, err))
			return
		}

		if apiErr := validationError(validate.Struct(req), contactViolations); apiErr != nil {
			abortWithError(c, apiErr)
			return
		}

		msg := s.contactMessage(c.Request, req)

		// クライアントが切断しても送信は中断しない
		ctx := context.WithoutCancel(c.Request.Context())
		if err := s.mailer.Send(ctx, msg); err != nil {
			abortWithError(c, delegationFailure(msgSendEmailFailed, fmt.Errorf("問い合わせメールの送信に失敗: %w", err)))
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// contactMessage は問い合わせ内容から送信するメッセージを組み立てる。
// 件名と本文に埋め込む名前とアドレスからは改行を取り除く。
func (s *Server) contactMessage(r *http.Request, req contactRequest) mail.Message {
	safeName := sanitize.StripControlChars(req.Name)
	safeEmail := sanitize.StripControlChars(req.Email)

	return mail.Message{
		From:    s.senderAddress(r),
		To:      s.contactEmail,
		Subject: "Contact form: " + safeName,
		Body:    fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", safeName, safeEmail, req.Message),
	}
}

// senderAddress は送信元アドレスを返す。
// 設定が無い場合はリクエストのホスト名を使う。
func (s *Server) senderAddress(r *http.Request) string {
	if s.mailFrom != "" {
		return s.mailFrom
	}
	host := (&url.URL{Host: r.Host}).Hostname()
	return "noreply@" + host
}
