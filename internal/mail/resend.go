package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	netmail "net/mail"
	"net/url"

	"github.com/resend/resend-go/v2"
)

// ResendTransport はResend APIでメールを配送するTransport。
// Resend APIは構造化されたフィールドを受け取るため、MIMEテキストから件名と本文を取り出して渡す。
type ResendTransport struct {
	// client はResend APIクライアント。
	client *resend.Client
}

// NewResendTransport はAPIキーから新しいResendTransportを生成する。
func NewResendTransport(apiKey string) *ResendTransport {
	return &ResendTransport{client: resend.NewClient(apiKey)}
}

// newResendTransportWithBaseURL は接続先を差し替えたResendTransportを生成する。テスト用。
func newResendTransportWithBaseURL(apiKey, baseURL string) (*ResendTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ResendのベースURLが不正: %w", err)
	}
	client := resend.NewClient(apiKey)
	client.BaseURL = u
	return &ResendTransport{client: client}, nil
}

// Send はエンベロープをResend APIへ送信する。
func (t *ResendTransport) Send(ctx context.Context, env Envelope) error {
	msg, err := netmail.ReadMessage(bytes.NewReader(env.Raw))
	if err != nil {
		return fmt.Errorf("MIMEメッセージの解析に失敗: %w", err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return fmt.Errorf("メッセージ本文の読み取りに失敗: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    env.From,
		To:      []string{env.To},
		Subject: msg.Header.Get("Subject"),
		Text:    string(body),
	}
	if _, err := t.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("Resend APIでのメール送信に失敗: %w", err)
	}
	return nil
}
