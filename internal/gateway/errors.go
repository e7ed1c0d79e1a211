package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nao1215/edgeapi/pkg/middleware"
)

// クライアントに返すエラーメッセージ。
const (
	msgInvalidJSON          = "Invalid JSON"
	msgMissingContactFields = "Missing required fields: name, email, message"
	msgFieldTooLong         = "Field exceeds maximum length"
	msgInvalidEmail         = "Invalid email address"
	msgMissingPrompt        = "Missing required field: prompt"
	msgSendEmailFailed      = "Failed to send email"
)

// errorKind はAPIエラーの分類。
type errorKind int

const (
	// kindMalformedInput はリクエストの形式や値が不正なことを表す（400）。
	kindMalformedInput errorKind = iota
	// kindDelegationFailure は外部呼び出しそのものが失敗したことを表す（500）。
	// 原因はログにだけ残し、レスポンスには含めない。
	kindDelegationFailure
	// kindUpstreamRejection は外部サービスが応答したうえで失敗を返したことを表す。
	// そのステータスと応答ボディをそのまま返す。
	kindUpstreamRejection
)

// String はログ出力用の分類名を返す。
func (k errorKind) String() string {
	switch k {
	case kindMalformedInput:
		return "malformed_input"
	case kindDelegationFailure:
		return "delegation_failure"
	case kindUpstreamRejection:
		return "upstream_rejection"
	default:
		return fmt.Sprintf("errorKind(%d)", int(k))
	}
}

// apiError はクライアントに返すエラー。
// 認可エラー（403）はmiddleware.RequireAccessが返す。
type apiError struct {
	kind    errorKind
	status  int
	message string
	// details は外部サービスの応答ボディ。kindUpstreamRejectionでだけ使う。
	details json.RawMessage
	// cause はログ用の内部エラー。
	cause error
}

// Error はerrorインターフェースを満たす。
func (e *apiError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap は内部エラーを返す。
func (e *apiError) Unwrap() error {
	return e.cause
}

// errorResponse はエラー時のレスポンスボディ。
type errorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

func malformedInput(message string, cause error) *apiError {
	return &apiError{kind: kindMalformedInput, status: http.StatusBadRequest, message: message, cause: cause}
}

func delegationFailure(message string, cause error) *apiError {
	return &apiError{kind: kindDelegationFailure, status: http.StatusInternalServerError, message: message, cause: cause}
}

func upstreamRejection(status int, message string, details []byte) *apiError {
	return &apiError{
		kind:    kindUpstreamRejection,
		status:  status,
		message: message,
		details: json.RawMessage(details),
		cause:   fmt.Errorf("外部サービスがステータス%dを返しました", status),
	}
}

// abortWithError はエラーをログに残し、JSONのエラーレスポンスを返して処理を打ち切る。
func abortWithError(c *gin.Context, apiErr *apiError) {
	_ = c.Error(apiErr)

	l := middleware.Logger(c)
	e := l.Warn()
	if apiErr.kind == kindDelegationFailure {
		e = l.Error()
	}
	e.Err(apiErr.cause).
		Str("kind", apiErr.kind.String()).
		Int("status", apiErr.status).
		Msg(apiErr.message)

	c.AbortWithStatusJSON(apiErr.status, errorResponse{Error: apiErr.message, Details: apiErr.details})
}

// violationMessages は検証タグとメッセージの対応。先頭ほど優先される。
type violationMessages []struct {
	tag     string
	message string
}

// contactViolations は問い合わせフォームの検証エラーの優先順位。
// 必須項目の欠落を長さ超過より、長さ超過を形式エラーより優先する。
var contactViolations = violationMessages{
	{tag: "required", message: msgMissingContactFields},
	{tag: "max", message: msgFieldTooLong},
	{tag: "contact_email", message: msgInvalidEmail},
}

// promptViolations は生成リクエストの検証エラーの優先順位。
var promptViolations = violationMessages{
	{tag: "required", message: msgMissingPrompt},
}

// validationError は検証結果を優先順位に従ってapiErrorへ変換する。検証に通った場合はnil。
func validationError(err error, messages violationMessages) *apiError {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return malformedInput(msgInvalidJSON, err)
	}
	for _, m := range messages {
		for _, fe := range verrs {
			if fe.Tag() == m.tag {
				return malformedInput(m.message, err)
			}
		}
	}
	return malformedInput(msgInvalidJSON, err)
}
