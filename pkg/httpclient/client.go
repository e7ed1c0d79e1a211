package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// tracer はHTTP呼び出しのスパンを記録するトレーサー。
var tracer = otel.Tracer("github.com/nao1215/edgeapi/pkg/httpclient")

// headerKeyRequestID はリクエストIDを外部呼び出しへ伝播するためのHTTPヘッダーキー。
const headerKeyRequestID = "X-Request-ID"

// Client は外部API呼び出し用のHTTPクライアント。
// リトライは行わず、1回の呼び出しにつき1回だけリクエストを送信する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
}

// Response は外部APIから返されたレスポンスの生データ。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ。
	Body []byte
}

// OK はステータスコードが2xxかどうかを返す。
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New は新しいHTTPクライアントを生成する。
// タイムアウトはこの層では設定しない。呼び出し元のコンテキストで打ち切る。
func New() *Client {
	return NewWithHTTPClient(&http.Client{})
}

// NewWithHTTPClient は任意の*http.Clientを使うクライアントを生成する。
// hcがnilの場合はhttp.DefaultClientを使う。
func NewWithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{httpClient: hc}
}

// PostJSON は指定URLにJSONボディでPOSTリクエストを送信する。
// ステータスコードが2xx以外でもエラーにはせず、レスポンスをそのまま返す。
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
}

// Get は指定URLにGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// do はHTTPリクエストを実行する共通処理。
func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	ctx, span := tracer.Start(ctx, "HTTP "+method)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// コンテキストからリクエストIDを伝播する
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		req.Header.Set(headerKeyRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 外部呼び出し時にX-Request-IDヘッダーとして伝播される。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
