package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
)

// SMTPConfig はSMTPサーバーへの接続設定。
type SMTPConfig struct {
	// Addr は "host:port" 形式のSMTPサーバーアドレス。
	Addr string
	// Username は認証ユーザー名。空の場合は認証しない。
	Username string
	// Password は認証パスワード。
	Password string
}

// SMTPTransport はSMTPサーバーへメールを配送するTransport。
// サーバーがSTARTTLSに対応していればTLSに切り替えてから認証・送信する。
type SMTPTransport struct {
	// cfg は接続設定。
	cfg SMTPConfig
	// dialer はTCP接続に使うダイアラー。
	dialer *net.Dialer
}

// NewSMTPTransport は新しいSMTPTransportを生成する。
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, dialer: &net.Dialer{}}
}

// Send はSMTPセッションを1回開いてエンベロープを送信する。
func (t *SMTPTransport) Send(ctx context.Context, env Envelope) error {
	host, _, err := net.SplitHostPort(t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーアドレスが不正: %w", err)
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("SMTP接続の期限設定に失敗: %w", err)
		}
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPセッションの開始に失敗: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("STARTTLSに失敗: %w", err)
		}
	}
	if t.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, host)); err != nil {
			return fmt.Errorf("SMTP認証に失敗: %w", err)
		}
	}

	if err := c.Mail(env.From); err != nil {
		return fmt.Errorf("MAIL FROMに失敗: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("RCPT TOに失敗: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATAの開始に失敗: %w", err)
	}
	if _, err := w.Write(env.Raw); err != nil {
		w.Close()
		return fmt.Errorf("メッセージの書き込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("メッセージの送信に失敗: %w", err)
	}

	return c.Quit()
}
