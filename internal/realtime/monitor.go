package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval は生存確認の既定の間隔。
const DefaultHeartbeatInterval = 30 * time.Second

// Monitor は一定間隔でpingを送り、前回のpingに応答しなかった接続を取り除く。
// 応答の猶予は1周期分。
type Monitor struct {
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor は新しいMonitorを生成する。intervalが0以下なら既定値を使う。
func NewMonitor(registry *Registry, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Monitor{
		registry: registry,
		interval: interval,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// Run はコンテキストが終了するまで Sweep を繰り返す。
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("生存確認を開始します")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("生存確認を停止します")
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info().Int("evicted", n).Msg("応答の無い接続を切断しました")
			}
		}
	}
}

// Sweep は1周期分の生存確認を行い、取り除いた接続の数を返す。
// 生存状態の接続は応答待ちにしてpingを送り、応答待ちのままの接続は切断する。
func (m *Monitor) Sweep() int {
	evicted := 0
	for _, c := range m.registry.Snapshot() {
		if c.markSuspect() {
			if err := c.ping(); err != nil {
				m.logger.Debug().Err(err).Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("pingの送信に失敗")
				m.evict(c)
				evicted++
			}
			continue
		}
		m.evict(c)
		evicted++
	}
	return evicted
}

// evict は接続をレジストリから取り除いて閉じる。
func (m *Monitor) evict(c *Connection) {
	if m.registry.Remove(c.UserID, c) {
		evictionsTotal.Inc()
	}
	c.Terminate()
}
