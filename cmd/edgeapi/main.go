// edgeapiのエントリポイント。
// 問い合わせフォームの送信と、アクセストークンで保護されたメディア生成を受け付ける。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/edgeapi/internal/access"
	"github.com/nao1215/edgeapi/internal/config"
	"github.com/nao1215/edgeapi/internal/gateway"
	"github.com/nao1215/edgeapi/internal/logger"
	"github.com/nao1215/edgeapi/internal/mail"
	"github.com/nao1215/edgeapi/internal/media"
	"github.com/nao1215/edgeapi/pkg/httpclient"
	"github.com/nao1215/edgeapi/pkg/telemetry"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "設定ファイル（YAML）のパス")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "edgeapi: %v\n", err)
		os.Exit(1)
	}
}

// run は設定を読み込み、依存を組み立ててサーバーを起動する。ctxが終了すると戻る。
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    cfg.Telemetry.Exporter,
	})
	if err != nil {
		return fmt.Errorf("トレースの初期化に失敗: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Error().Err(err).Msg("トレースの停止に失敗")
		}
	}()

	transport, err := newMailTransport(cfg.Mail, log)
	if err != nil {
		return err
	}

	hc := httpclient.New()
	trust := access.TrustConfig{
		TeamDomain:     cfg.Access.TeamDomain,
		PolicyAudience: cfg.Access.PolicyAudience,
	}
	verifier := access.NewVerifier(trust, access.NewRemoteKeySet(trust.CertsURL(), hc))
	mediaClient := media.NewClient(media.StaticGateway{
		BaseURL:   cfg.Media.GatewayBaseURL,
		AccountID: cfg.Media.AccountID,
		Name:      cfg.Media.GatewayName,
	}, hc)

	server, err := gateway.NewServer(gateway.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins(),
		ContactEmail:   cfg.Mail.ContactEmail,
		MailFrom:       cfg.Mail.From,
	}, gateway.Dependencies{
		Logger:   log,
		Mailer:   mail.NewClient(transport),
		Media:    mediaClient,
		Verifier: verifier,
	})
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}

	log.Info().
		Str("mail_transport", cfg.Mail.Transport).
		Str("telemetry_exporter", cfg.Telemetry.Exporter).
		Msg("edgeapiを起動します")
	return server.Run(ctx)
}

// newMailTransport は設定に応じたメール配送方式を返す。
func newMailTransport(cfg config.MailConfig, log zerolog.Logger) (mail.Transport, error) {
	switch cfg.Transport {
	case "", "log":
		return mail.NewLogTransport(log), nil
	case "smtp":
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}), nil
	case "resend":
		return mail.NewResendTransport(cfg.ResendAPIKey), nil
	default:
		return nil, fmt.Errorf("未知のメール配送方式: %q", cfg.Transport)
	}
}
