package realtime

import (
	"context"
	"sync/atomic"

	"github.com/nao1215/animalbase/pkg/wire"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Dispatcher はユーザーの全ライブ接続に通知を送る。
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch は呼び出し時点のユーザーの全接続へ通知を並行して送り、成功した送信の数を返す。
// 接続が無ければ何もせず0を返す。1本の送信失敗は記録するだけで、他の接続への送信には影響しない。
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, n wire.Notification) int {
	conns := d.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		return 0
	}

	data, err := wire.Encode(n)
	if err != nil {
		d.logger.Error().Err(err).Str("user_id", userID).Msg("通知のシリアライズに失敗")
		return 0
	}

	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	for _, c := range conns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				pushesTotal.WithLabelValues("canceled").Inc()
				return nil
			}
			if err := c.Send(data); err != nil {
				pushesTotal.WithLabelValues("failed").Inc()
				d.logger.Warn().Err(err).Str("user_id", userID).Str("conn_id", c.ID).Msg("通知の送信に失敗")
				return nil
			}
			pushesTotal.WithLabelValues("delivered").Inc()
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug().
		Str("user_id", userID).
		Int("connections", len(conns)).
		Int64("delivered", delivered.Load()).
		Msg("通知を配信しました")
	return int(delivered.Load())
}
