package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/edgeapi/internal/mail"
	"github.com/nao1215/edgeapi/internal/media"
	"github.com/nao1215/edgeapi/pkg/httpclient"
	"github.com/nao1215/edgeapi/pkg/middleware"
	"github.com/rs/zerolog"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ最大時間。
const shutdownTimeout = 10 * time.Second

// MediaGenerator はメディア生成APIを呼び出すもの。
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts media.ImageOptions) (*httpclient.Response, error)
	GenerateVideo(ctx context.Context, prompt string, opts media.VideoOptions) (*httpclient.Response, error)
}

// Config はサーバーの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// AllowedOrigins はCORSを許可するオリジン。
	AllowedOrigins []string
	// ContactEmail は問い合わせの送信先。
	ContactEmail string
	// MailFrom は問い合わせメールの送信元。空の場合は noreply@{リクエストのホスト名}。
	MailFrom string
}

// Dependencies はサーバーが委譲する外部機能。
type Dependencies struct {
	Logger   zerolog.Logger
	Mailer   mail.Sender
	Media    MediaGenerator
	Verifier middleware.AccessVerifier
}

// Server はedgeapiのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// logger はリクエスト外で使うロガー。
	logger zerolog.Logger
	// mailer は問い合わせメールの送信先。
	mailer mail.Sender
	// media はメディア生成APIのクライアント。
	media MediaGenerator
	// verifier はアクセストークンの検証器。
	verifier middleware.AccessVerifier
	// contactEmail は問い合わせの送信先アドレス。
	contactEmail string
	// mailFrom は固定の送信元アドレス。
	mailFrom string
}

// NewServer は新しいサーバーを生成する。
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	switch {
	case deps.Mailer == nil:
		return nil, errors.New("メール送信クライアントが指定されていません")
	case deps.Media == nil:
		return nil, errors.New("メディア生成クライアントが指定されていません")
	case deps.Verifier == nil:
		return nil, errors.New("アクセストークン検証器が指定されていません")
	case cfg.ContactEmail == "":
		return nil, errors.New("問い合わせの送信先が指定されていません")
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:       router,
		port:         cfg.Port,
		logger:       deps.Logger,
		mailer:       deps.Mailer,
		media:        deps.Media,
		verifier:     deps.Verifier,
		contactEmail: cfg.ContactEmail,
		mailFrom:     cfg.MailFrom,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxが終了するまで待つ。
// ctxが終了すると処理中のリクエストを待ってから停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort("", s.port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", s.port).Msg("サーバーを起動")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("サーバーを停止")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		// 問い合わせ（認証不要）
		api.POST("/contact", s.handleContact())

		// メディア生成
		generate := api.Group("/media")
		generate.Use(middleware.RequireAccess(s.verifier))
		{
			generate.POST("/generate-image", s.handleGenerateImage())
			generate.POST("/generate-video", s.handleGenerateVideo())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "edgeapi"})
	})

	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Not found"})
	})
}
