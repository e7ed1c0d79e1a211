package mail

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/nao1215/edgeapi/internal/mail")

// Envelope はTransportに渡す送信単位。
type Envelope struct {
	// From はエンベロープの送信元アドレス。
	From string
	// To はエンベロープの宛先アドレス。
	To string
	// Raw はMIME形式のメッセージ全体。
	Raw []byte
}

// Transport はメールを実際に配送するバインディング。
// 1回の呼び出しで1通だけ送信し、リトライは行わない。
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

// Sender はメッセージを送信するもの。ハンドラーのテストで差し替える。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client はメッセージをMIME形式に組み立ててTransportへ渡すクライアント。
type Client struct {
	// transport は配送に使うバインディング。
	transport Transport
}

// NewClient は新しいメールクライアントを生成する。
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// Send はメッセージを1通送信する。Transportのエラーはそのまま返す。
func (c *Client) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "mail.Send")
	defer span.End()
	span.SetAttributes(attribute.String("mail.to", msg.To))

	err := c.transport.Send(ctx, Envelope{
		From: msg.From,
		To:   msg.To,
		Raw:  []byte(msg.MIME()),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
