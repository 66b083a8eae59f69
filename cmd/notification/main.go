// 通知サービスのエントリポイント。
// 通知を永続化し、ログイン中のユーザーの全接続へWebSocketで即時配信する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/animalbase/internal/config"
	"github.com/nao1215/animalbase/internal/notification"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	logger := log.With().Str("service", "notification").Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	if err := cfg.Server.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("サーバー設定が不正です")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.Open(ctx, cfg.Server, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("通知サーバーの初期化に失敗")
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Error().Err(err).Msg("データベースのクローズに失敗")
		}
	}()

	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("通知サービスが異常終了しました")
		return
	}
	logger.Info().Msg("通知サービスを停止しました")
}
