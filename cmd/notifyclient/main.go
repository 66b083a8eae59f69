// 通知クライアントのエントリポイント。
// ライブチャネルに接続を維持し、届いた通知と定期ポーリングで見つけた未読通知を表示する。
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	logger := log.With().Str("service", "notifyclient").Logger()

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
