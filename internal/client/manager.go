package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/nao1215/animalbase/pkg/wire"
	"github.com/rs/zerolog"
)

// closeUnauthorized はサーバーが認証失敗を表すクローズコード。
const closeUnauthorized = 4001

// ErrNotRunning はイベントループが動いていないことを表す。
var ErrNotRunning = errors.New("接続マネージャーが動作していません")

// ManagerConfig はManagerの設定。
type ManagerConfig struct {
	// BackoffFloor は再接続待ち時間の初期値。
	BackoffFloor time.Duration
	// BackoffCeiling は再接続待ち時間の上限。
	BackoffCeiling time.Duration
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evDialed
	evMessage
	evClosed
	evTimer
)

// event はイベントループに渡される1件の出来事。
// gen が現在の世代と異なるイベントは古い接続試行のものとして捨てる。
type event struct {
	kind eventKind
	gen  uint64
	conn Conn
	data []byte
	err  error
	ack  chan struct{}
}

// Manager はライブチャネルへの接続を1本維持する。
// 状態遷移はすべて Run のイベントループで処理し、タイマーや受信ループはイベントを送るだけ。
type Manager struct {
	dialer  Dialer
	tokens  TokenSource
	alerter Alerter
	logger  zerolog.Logger
	floor   time.Duration

	events chan event
	done   chan struct{}

	// 以下はイベントループだけが触る。
	ctx        context.Context
	state      State
	gen        uint64
	conn       Conn
	cancelDial context.CancelFunc
	timer      *time.Timer
	backoff    *backoff.ExponentialBackOff
	delay      time.Duration
	failures   int
	suppressed bool

	statusMu sync.RWMutex
	status   Status
}

// NewManager は新しいManagerを生成する。Run を呼ぶまで何もしない。
func NewManager(dialer Dialer, tokens TokenSource, alerter Alerter, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.BackoffFloor <= 0 {
		cfg.BackoffFloor = DefaultBackoffFloor
	}
	if cfg.BackoffCeiling < cfg.BackoffFloor {
		cfg.BackoffCeiling = max(DefaultBackoffCeiling, cfg.BackoffFloor)
	}
	m := &Manager{
		dialer:  dialer,
		tokens:  tokens,
		alerter: alerter,
		logger:  logger.With().Str("component", "connection").Logger(),
		floor:   cfg.BackoffFloor,
		events:  make(chan event),
		done:    make(chan struct{}),
		backoff: newDoublingBackOff(cfg.BackoffFloor, cfg.BackoffCeiling),
		delay:   cfg.BackoffFloor,
	}
	m.publish()
	return m
}

// Run はコンテキストが終了するまでイベントループを回す。
// 終了時は接続を閉じ、予約中の再接続を取り消す。
func (m *Manager) Run(ctx context.Context) error {
	m.ctx = ctx
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			m.publish()
			return nil
		case ev := <-m.events:
			m.handle(ev)
			m.publish()
			if ev.ack != nil {
				close(ev.ack)
			}
		}
	}
}

// Connect は接続を開始する。未ログインなら何もしない。
// 予約中の再接続は取り消し、すぐに接続を試みる。
func (m *Manager) Connect() error {
	return m.request(evConnect)
}

// Disconnect は接続を閉じ、予約中の再接続を取り消す。
// 次に Connect が呼ばれるまで再接続しない。
func (m *Manager) Disconnect() error {
	return m.request(evDisconnect)
}

// Status は現在の状態のスナップショットを返す。
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

// request はイベントを送り、イベントループが処理し終えるまで待つ。
func (m *Manager) request(kind eventKind) error {
	ack := make(chan struct{})
	select {
	case m.events <- event{kind: kind, ack: ack}:
	case <-m.done:
		return ErrNotRunning
	}
	select {
	case <-ack:
		return nil
	case <-m.done:
		return ErrNotRunning
	}
}

// post はイベントループにイベントを送る。ループが終了していれば捨てる。
func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evConnect:
		m.onConnect()
	case evDisconnect:
		m.onDisconnect()
	case evDialed:
		m.onDialed(ev)
	case evMessage:
		m.onMessage(ev)
	case evClosed:
		m.onClosed(ev)
	case evTimer:
		m.onTimer(ev)
	}
}

func (m *Manager) onConnect() {
	m.suppressed = false
	if m.tokens.Token() == "" {
		m.logger.Debug().Msg("未ログインのため接続しません")
		return
	}
	if m.state != StateDisconnected {
		return
	}
	m.dial()
}

func (m *Manager) onDisconnect() {
	m.teardown()
	m.suppressed = true
	m.failures = 0
	m.backoff.Reset()
	m.delay = m.floor
	m.logger.Info().Msg("ライブチャネルから切断しました")
}

// teardown は接続と接続試行を閉じ、予約中の再接続を取り消す。
func (m *Manager) teardown() {
	m.gen++
	m.stopTimer()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		_ = m.conn.Close(websocket.CloseNormalClosure, "")
		m.conn = nil
	}
	m.state = StateDisconnected
}

// dial は新しい世代で接続を試みる。結果は evDialed で届く。
func (m *Manager) dial() {
	m.stopTimer()
	token := m.tokens.Token()
	if token == "" {
		m.state = StateDisconnected
		return
	}

	m.gen++
	gen := m.gen
	m.state = StateConnecting

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelDial = cancel
	go func() {
		conn, err := m.dialer.Dial(ctx, token)
		m.post(event{kind: evDialed, gen: gen, conn: conn, err: err})
	}()
	m.logger.Debug().Uint64("gen", gen).Msg("ライブチャネルに接続します")
}

func (m *Manager) onDialed(ev event) {
	if ev.gen != m.gen || m.state != StateConnecting {
		if ev.conn != nil {
			_ = ev.conn.Close(websocket.CloseNormalClosure, "")
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if ev.err != nil {
		m.fail(ev.err)
		return
	}

	m.conn = ev.conn
	go m.readLoop(ev.gen, ev.conn)
}

// readLoop は接続が閉じられるまでフレームを受信し、イベントループへ送る。
func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.post(event{kind: evClosed, gen: gen, err: err})
			return
		}
		m.post(event{kind: evMessage, gen: gen, data: data})
	}
}

func (m *Manager) onMessage(ev event) {
	if ev.gen != m.gen {
		return
	}

	p, err := wire.Decode(ev.data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("不正なフレームを破棄しました")
		return
	}

	switch p := p.(type) {
	case wire.Connected:
		if m.state != StateConnecting {
			return
		}
		m.state = StateOpen
		m.failures = 0
		m.backoff.Reset()
		m.delay = m.floor
		m.logger.Info().Str("message", p.Message).Msg("ライブチャネルに接続しました")
	case wire.Notification:
		if m.state != StateOpen {
			m.logger.Debug().Msg("接続確立前の通知を破棄しました")
			return
		}
		m.alerter.Alert(alertFromPush(p))
	default:
		m.logger.Debug().Str("type", string(p.FrameType())).Msg("未知の種類のフレームを破棄しました")
	}
}

func (m *Manager) onClosed(ev event) {
	if ev.gen != m.gen {
		return
	}
	if m.conn != nil {
		_ = m.conn.Close(websocket.CloseNormalClosure, "")
		m.conn = nil
	}

	var ce *websocket.CloseError
	if errors.As(ev.err, &ce) && ce.Code == closeUnauthorized {
		m.logger.Warn().Str("reason", ce.Text).Msg("サーバーに認証を拒否されました")
	}
	m.fail(ev.err)
}

// fail は接続の失敗を記録し、現在の待ち時間の後に再接続を予約する。
func (m *Manager) fail(err error) {
	m.state = StateDisconnected
	m.failures++
	if m.suppressed {
		return
	}

	m.delay = m.backoff.NextBackOff()
	gen := m.gen
	m.timer = time.AfterFunc(m.delay, func() {
		m.post(event{kind: evTimer, gen: gen})
	})
	m.logger.Info().
		Err(err).
		Int("failures", m.failures).
		Dur("delay", m.delay).
		Msg("ライブチャネルが切断されました。再接続を予約します")
}

func (m *Manager) onTimer(ev event) {
	if ev.gen != m.gen || m.timer == nil {
		return
	}
	m.timer = nil
	if m.state != StateDisconnected || m.suppressed {
		return
	}
	m.dial()
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// publish はイベントループの状態をStatusとして公開する。
func (m *Manager) publish() {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status = Status{
		State:        m.state,
		Delay:        m.delay,
		Failures:     m.failures,
		Reconnecting: m.timer != nil,
		Suppressed:   m.suppressed,
	}
}
