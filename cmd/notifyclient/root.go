package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/nao1215/animalbase/internal/client"
	"github.com/nao1215/animalbase/internal/config"
	"github.com/nao1215/animalbase/pkg/httpclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// options はコマンドラインフラグの値。空の項目は設定ファイルの値を使う。
type options struct {
	configPath string
	wsURL      string
	apiURL     string
	token      string
}

func newRootCmd(logger zerolog.Logger) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "notifyclient",
		Short:         "通知サービスに接続し、届いた通知を表示する",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				logger.Error().Err(err).Msg("設定の読み込みに失敗")
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg.Client, logger); err != nil {
				logger.Error().Err(err).Msg("通知クライアントが異常終了しました")
				return err
			}
			return nil
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&opts.configPath, "config", "c", "", "設定ファイルのパス")
	persistent.StringVar(&opts.apiURL, "api-url", "", "REST APIのベースURL")
	persistent.StringVar(&opts.token, "token", "", "ログイン済みセッションのJWT")
	cmd.Flags().StringVar(&opts.wsURL, "ws-url", "", "ライブチャネルのURL")

	cmd.AddCommand(newReadAllCmd(&opts, logger), newSendCmd(&opts, logger))
	return cmd
}

// loadConfig は設定ファイルと環境変数を読み、フラグで上書きしてから検証する。
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.wsURL != "" {
		cfg.Client.WSURL = opts.wsURL
	}
	if opts.apiURL != "" {
		cfg.Client.APIURL = opts.apiURL
	}
	if opts.token != "" {
		cfg.Client.Token = opts.token
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run は接続マネージャーとポーラーを起動し、コンテキストが終了するまで動かす。
func run(ctx context.Context, cfg config.Client, logger zerolog.Logger) error {
	session := client.NewSession(cfg.Token)
	if !session.LoggedIn() {
		logger.Warn().Msg("トークンが未設定のため、ログインするまで通知を受け取りません")
	}
	alerter := client.NewDedupAlerter(client.NewLogAlerter(logger), cfg.DedupCapacity)

	manager := client.NewManager(client.NewWSDialer(cfg.WSURL), session, alerter, client.ManagerConfig{
		BackoffFloor:   cfg.BackoffFloor,
		BackoffCeiling: cfg.BackoffCeiling,
	}, logger)
	poller := client.NewPoller(client.NewAPI(httpclient.New(cfg.APIURL), session), alerter, client.PollerConfig{
		Interval:  cfg.PollInterval,
		MaxAlerts: cfg.MaxAlerts,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		// ループが先に終了した場合はErrNotRunningになるが、停止中なので無視する
		_ = manager.Connect()
		return nil
	})

	return g.Wait()
}
