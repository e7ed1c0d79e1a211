package gateway

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/edgeapi/internal/access"
	"github.com/nao1215/edgeapi/internal/mail"
	"github.com/nao1215/edgeapi/internal/media"
	"github.com/nao1215/edgeapi/pkg/httpclient"
	"github.com/rs/zerolog"
)

// mediaEndpoints は生成エンドポイントと、その種類ごとの期待値。
var mediaEndpoints = []struct {
	path       string
	kind       string
	failed     string
	unexpected string
}{
	{
		path:       "/api/media/generate-image",
		kind:       "image",
		failed:     "Image generation failed",
		unexpected: "Unexpected error during image generation",
	},
	{
		path:       "/api/media/generate-video",
		kind:       "video",
		failed:     "Video generation failed",
		unexpected: "Unexpected error during video generation",
	},
}

// TestHandleGenerate は画像・動画生成ハンドラーに共通の振る舞いを検証する。
func TestHandleGenerate(t *testing.T) {
	t.Parallel()

	for _, ep := range mediaEndpoints {
		t.Run(ep.kind+": 検証に失敗した場合は403で生成APIを呼ばないこと", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, denyAll)
			w := env.do(http.MethodPost, ep.path, `{"prompt":"a cat"}`)

			assertJSONError(t, w, http.StatusForbidden, "Unauthorized")
			if n := len(env.media.recorded()); n != 0 {
				t.Errorf("生成APIの呼び出し回数 = %d, want 0", n)
			}
		})

		t.Run(ep.kind+": 認可がJSONの解析より先に行われること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, denyAll)
			w := env.do(http.MethodPost, ep.path, `not json`)

			assertJSONError(t, w, http.StatusForbidden, "Unauthorized")
		})

		for _, body := range []string{
			`{"prompt":`,
			``,
			`{"prompt":"x"} not json`,
			`{"prompt":"x"}}}`,
			`{"prompt":"x"}{"prompt":"y"}`,
			`[{"prompt":"x"}]`,
			`{"prompt":1}`,
		} {
			t.Run(ep.kind+": JSONでないボディは400で生成APIを呼ばないこと "+body, func(t *testing.T) {
				t.Parallel()

				env := newTestEnv(t, allowAll)
				w := env.do(http.MethodPost, ep.path, body)

				assertJSONError(t, w, http.StatusBadRequest, "Invalid JSON")
				if n := len(env.media.recorded()); n != 0 {
					t.Errorf("生成APIの呼び出し回数 = %d, want 0", n)
				}
			})
		}

		t.Run(ep.kind+": 成功時は利用者のメールアドレスがログに残ること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			w := env.do(http.MethodPost, ep.path, `{"prompt":"a cat"}`)

			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
			if !strings.Contains(env.logs.String(), `"email":"user@example.com"`) {
				t.Errorf("ログに利用者のメールアドレスが無い: %s", env.logs.String())
			}
		})

		for _, body := range []string{`{}`, `{"prompt":""}`, `{"imageSize":"square"}`} {
			t.Run(ep.kind+": promptが無い場合は400で生成APIを呼ばないこと "+body, func(t *testing.T) {
				t.Parallel()

				env := newTestEnv(t, allowAll)
				w := env.do(http.MethodPost, ep.path, body)

				assertJSONError(t, w, http.StatusBadRequest, "Missing required field: prompt")
				if n := len(env.media.recorded()); n != 0 {
					t.Errorf("生成APIの呼び出し回数 = %d, want 0", n)
				}
			})
		}

		t.Run(ep.kind+": 成功時は生成APIのボディがそのまま返ること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			env.media.resp = &httpclient.Response{StatusCode: http.StatusOK, Body: []byte(`{"images":[{"url":"X"}]}`)}
			w := env.do(http.MethodPost, ep.path, `{"prompt":"a cat"}`)

			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコード = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
			}
			if got := w.Body.String(); got != `{"images":[{"url":"X"}]}` {
				t.Errorf("ボディ = %s, want %s", got, `{"images":[{"url":"X"}]}`)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			calls := env.media.recorded()
			if len(calls) != 1 {
				t.Fatalf("生成APIの呼び出し回数 = %d, want 1", len(calls))
			}
			if calls[0].kind != ep.kind || calls[0].prompt != "a cat" {
				t.Errorf("呼び出し = %+v", calls[0])
			}
		})

		t.Run(ep.kind+": 201などの2xxも200として返ること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			env.media.resp = &httpclient.Response{StatusCode: http.StatusCreated, Body: []byte(`{"request_id":"r"}`)}
			w := env.do(http.MethodPost, ep.path, `{"prompt":"p"}`)

			if w.Code != http.StatusOK {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
		})

		t.Run(ep.kind+": 生成APIのエラーステータスとボディがdetailsで返ること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			env.media.resp = &httpclient.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       []byte(`{"detail":"Rate limit exceeded"}`),
			}
			w := env.do(http.MethodPost, ep.path, `{"prompt":"p"}`)

			assertJSONError(t, w, http.StatusTooManyRequests, ep.failed)
			details, ok := decodeBody(t, w)["details"].(map[string]any)
			if !ok {
				t.Fatalf("detailsがオブジェクトではない: %s", w.Body.String())
			}
			if details["detail"] != "Rate limit exceeded" {
				t.Errorf("details = %v", details)
			}
		})

		t.Run(ep.kind+": 呼び出しに失敗した場合は500で原因を返さないこと", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			env.media.resp = nil
			env.media.err = errors.New("dial tcp 10.0.0.1:443: connection refused")
			w := env.do(http.MethodPost, ep.path, `{"prompt":"p"}`)

			assertJSONError(t, w, http.StatusInternalServerError, ep.unexpected)
			if strings.Contains(w.Body.String(), "10.0.0.1") {
				t.Errorf("内部エラーがレスポンスに含まれている: %s", w.Body.String())
			}
			if _, ok := decodeBody(t, w)["details"]; ok {
				t.Error("呼び出し失敗時にdetailsが含まれている")
			}
			if !strings.Contains(env.logs.String(), "connection refused") {
				t.Errorf("内部エラーがログに出力されていない: %s", env.logs.String())
			}
		})

		t.Run(ep.kind+": JSONでない応答は500になること", func(t *testing.T) {
			t.Parallel()

			for _, status := range []int{http.StatusOK, http.StatusBadGateway} {
				env := newTestEnv(t, allowAll)
				env.media.resp = &httpclient.Response{StatusCode: status, Body: []byte("<html>Bad Gateway</html>")}
				w := env.do(http.MethodPost, ep.path, `{"prompt":"p"}`)

				assertJSONError(t, w, http.StatusInternalServerError, ep.unexpected)
			}
		})

		t.Run(ep.kind+": 同じリクエストは同じレスポンスで1回ずつ委譲されること", func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, allowAll)
			w1 := env.do(http.MethodPost, ep.path, `{"prompt":"same"}`)
			w2 := env.do(http.MethodPost, ep.path, `{"prompt":"same"}`)

			if w1.Code != w2.Code || w1.Body.String() != w2.Body.String() {
				t.Errorf("レスポンスが異なる: %d %s / %d %s", w1.Code, w1.Body.String(), w2.Code, w2.Body.String())
			}
			if n := len(env.media.recorded()); n != 2 {
				t.Errorf("生成APIの呼び出し回数 = %d, want 2", n)
			}
		})
	}
}

// TestHandleGenerateOptions は調整パラメータの受け渡しを検証する。
func TestHandleGenerateOptions(t *testing.T) {
	t.Parallel()

	t.Run("画像サイズが生成クライアントに渡ること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, allowAll)
		env.do(http.MethodPost, "/api/media/generate-image", `{"prompt":"p","imageSize":"square_hd"}`)

		calls := env.media.recorded()
		if len(calls) != 1 {
			t.Fatalf("生成APIの呼び出し回数 = %d, want 1", len(calls))
		}
		if calls[0].image.ImageSize != "square_hd" {
			t.Errorf("ImageSize = %q, want %q", calls[0].image.ImageSize, "square_hd")
		}
	})

	t.Run("動画の調整パラメータが生成クライアントに渡ること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, allowAll)
		env.do(http.MethodPost, "/api/media/generate-video", `{"prompt":"p","aspectRatio":"9:16","resolution":"1080p","duration":"10"}`)

		calls := env.media.recorded()
		if len(calls) != 1 {
			t.Fatalf("生成APIの呼び出し回数 = %d, want 1", len(calls))
		}
		want := media.VideoOptions{AspectRatio: "9:16", Resolution: "1080p", Duration: "10"}
		if calls[0].video != want {
			t.Errorf("VideoOptions = %+v, want %+v", calls[0].video, want)
		}
	})

	t.Run("省略した調整パラメータは空のまま渡ること", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, allowAll)
		env.do(http.MethodPost, "/api/media/generate-video", `{"prompt":"p"}`)

		if got := env.media.recorded()[0].video; got != (media.VideoOptions{}) {
			t.Errorf("VideoOptions = %+v, want zero value", got)
		}
	})
}

// TestEndToEnd は実際の検証器・生成クライアント・メールクライアントを組み合わせて検証する。
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}
	jwks, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &key.PublicKey, KeyID: "kid-1", Algorithm: "RS256", Use: "sig",
	}}})
	if err != nil {
		t.Fatalf("JWKSのシリアライズに失敗: %v", err)
	}

	var certsCalls atomic.Int32
	certs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		certsCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwks)
	}))
	t.Cleanup(certs.Close)

	var (
		capabilityCalls atomic.Int32
		capabilityPath  atomic.Value
	)
	capability := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capabilityCalls.Add(1)
		capabilityPath.Store(r.URL.Path)
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"images":[{"url":"https://fal.media/e2e.png"}]}`))
	}))
	t.Cleanup(capability.Close)

	trust := access.TrustConfig{TeamDomain: "e2e-team", PolicyAudience: "e2e-aud"}
	verifier := access.NewVerifier(trust, access.NewRemoteKeySet(certs.URL, nil))
	mediaClient := media.NewClient(media.StaticGateway{BaseURL: capability.URL, AccountID: "acc"}, nil)
	transport := &recordingTransport{}

	s, err := NewServer(Config{ContactEmail: testContactEmail}, Dependencies{
		Logger:   zerolog.Nop(),
		Mailer:   mail.NewClient(transport),
		Media:    mediaClient,
		Verifier: verifier,
	})
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "kid-1"
		signed, err := token.SignedString(key)
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}
		return signed
	}
	now := time.Now()
	validToken := sign(jwt.MapClaims{
		"email": "user@example.com",
		"sub":   "user-1",
		"iss":   trust.Issuer(),
		"aud":   []string{"e2e-aud"},
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	wrongAudToken := sign(jwt.MapClaims{
		"iss": trust.Issuer(),
		"aud": []string{"other-aud"},
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	post := func(path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "https://example.com"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("cf-access-jwt-assertion", token)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w
	}

	// サブテストは生成APIの呼び出し回数を共有するため順に実行する
	t.Run("有効なトークンで画像が生成されること", func(t *testing.T) {
		w := post("/api/media/generate-image", validToken, `{"prompt":"e2e"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}
		if got := w.Body.String(); got != `{"images":[{"url":"https://fal.media/e2e.png"}]}` {
			t.Errorf("ボディ = %s", got)
		}
		if want := "/acc/website-foundation/fal/fal-ai/bytedance/seedream/v4.5/text-to-image"; capabilityPath.Load() != want {
			t.Errorf("Path = %v, want %q", capabilityPath.Load(), want)
		}
	})

	t.Run("トークンが無い場合と不正な場合は403で生成APIを呼ばないこと", func(t *testing.T) {
		before := capabilityCalls.Load()
		for _, token := range []string{"", "garbage", wrongAudToken} {
			w := post("/api/media/generate-video", token, `{"prompt":"e2e"}`)
			assertJSONError(t, w, http.StatusForbidden, "Unauthorized")
		}
		if got := capabilityCalls.Load(); got != before {
			t.Errorf("生成APIの呼び出し回数 = %d, want %d", got, before)
		}
	})

	t.Run("公開鍵セットは一度だけ取得されること", func(t *testing.T) {
		post("/api/media/generate-image", validToken, `{"prompt":"again"}`)
		if got := certsCalls.Load(); got != 1 {
			t.Errorf("公開鍵セットの取得回数 = %d, want 1", got)
		}
	})

	t.Run("問い合わせがMIME形式で配送されること", func(t *testing.T) {
		w := post("/api/contact", "", `{"name":"E2E","email":"e2e@example.com","message":"hi"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}
		envs := transport.recorded()
		if len(envs) != 1 {
			t.Fatalf("配送回数 = %d, want 1", len(envs))
		}
		raw := string(envs[0].Raw)
		if !strings.HasPrefix(raw, "From: noreply@example.com\r\nTo: owner@example.com\r\nSubject: Contact form: E2E\r\n") {
			t.Errorf("Raw = %q", raw)
		}
	})
}

// recordingTransport は配送したエンベロープを記録するテスト用のmail.Transport。
type recordingTransport struct {
	mu        sync.Mutex
	envelopes []mail.Envelope
}

// Send はエンベロープを記録する。
func (r *recordingTransport) Send(_ context.Context, env mail.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return nil
}

// recorded は記録したエンベロープを返す。
func (r *recordingTransport) recorded() []mail.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Envelope(nil), r.envelopes...)
}
