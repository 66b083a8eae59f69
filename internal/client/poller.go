package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval は未読通知のポーリングの既定の間隔。
	DefaultPollInterval = 15 * time.Minute
	// DefaultMaxAlerts は1回のポーリングで表示する通知の既定の最大件数。
	DefaultMaxAlerts = 3
	// retryFloor は失敗したポーリングを再試行するまでの最初の待ち時間。
	retryFloor = 30 * time.Second
)

// PollerConfig はPollerの設定。
type PollerConfig struct {
	// Interval はポーリングの間隔。
	Interval time.Duration
	// MaxAlerts は1回のポーリングで表示する通知の最大件数。
	MaxAlerts int
}

// Poller は一定間隔で未読通知を取得し、新しいものから最大件数までを表示する。
// ライブチャネルで届かなかった通知を補うためのもので、ライブ接続の状態とは独立して動く。
type Poller struct {
	api     *API
	alerter Alerter
	cfg     PollerConfig
	logger  zerolog.Logger
}

// NewPoller は新しいPollerを生成する。
func NewPoller(api *API, alerter Alerter, cfg PollerConfig, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultMaxAlerts
	}
	return &Poller{
		api:     api,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With().Str("component", "poller").Logger(),
	}
}

// PollOnce は未読通知を1回取得して表示する。
// 未ログインならリクエストを送らずに成功を返す。
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.api.LoggedIn() {
		return nil
	}

	unread, err := p.api.Unread(ctx)
	if err != nil {
		return fmt.Errorf("未読通知の取得に失敗: %w", err)
	}

	for i, n := range unread {
		if i >= p.cfg.MaxAlerts {
			break
		}
		p.alerter.Alert(newAlert(n.ID, n.Type, n.Title, n.Message, n.RelatedID, SourcePoll))
	}
	p.logger.Debug().Int("unread", len(unread)).Msg("未読通知を取得しました")
	return nil
}

// Run はコンテキストが終了するまでポーリングを続ける。最初のポーリングはすぐに行う。
// 失敗したポーリングは待ち時間を倍々に延ばしながら再試行し、待ち時間は間隔を超えない。
// トークンを拒否された場合は再試行しても結果が変わらないため、次の定期ポーリングまで待つ。
func (p *Poller) Run(ctx context.Context) error {
	retry := newDoublingBackOff(min(retryFloor, p.cfg.Interval), p.cfg.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		next := p.cfg.Interval
		switch err := p.PollOnce(ctx); {
		case err == nil:
			retry.Reset()
		case errors.Is(err, ErrUnauthorized):
			retry.Reset()
			p.logger.Warn().Err(err).Dur("retry_in", next).Msg("トークンが拒否されました。再ログインが必要です")
		default:
			next = retry.NextBackOff()
			p.logger.Warn().Err(err).Dur("retry_in", next).Msg("ポーリングに失敗しました")
		}
		timer.Reset(next)
	}
}
