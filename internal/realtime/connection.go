package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport は1本のライブ接続に対する送信操作。
// 通常は gorilla/websocket の接続をラップした実装を使う。
type Transport interface {
	// WriteText はテキストフレームを1つ送る。
	WriteText(data []byte) error
	// Ping はpingコントロールフレームを送る。
	Ping() error
	// CloseWith はクローズフレームを送ってから接続を閉じる。
	CloseWith(code int, reason string) error
	// Terminate はクローズフレームを送らずに接続を閉じる。
	Terminate() error
}

// Connection はレジストリに登録される1本のライブ接続。
type Connection struct {
	// ID は接続の一意識別子。
	ID string
	// UserID は接続を所有する認証済みユーザーのID。
	UserID string
	// CreatedAt は接続が受け付けられた日時。
	CreatedAt time.Time

	transport Transport
	// sendMu はフレームの書き込みを直列化する。
	sendMu    sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
}

// NewConnection は生存状態の新しい接続を生成する。
func NewConnection(userID string, t Transport) *Connection {
	c := &Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		transport: t,
	}
	c.alive.Store(true)
	return c
}

// Send はテキストフレームを送る。書き込み期限はTransportが設定する。
func (c *Connection) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.transport.WriteText(data)
}

// announce は送信の排他を保持したままregisterを呼び、最初のフレームを送る。
// 登録直後の配信が最初のフレームより先に届くことはない。
func (c *Connection) announce(register func(), data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	register()
	return c.transport.WriteText(data)
}

// MarkAlive はpongを受け取ったときに呼ばれ、接続を生存状態に戻す。
func (c *Connection) MarkAlive() {
	c.alive.Store(true)
}

// Alive は接続が生存状態かどうかを返す。
func (c *Connection) Alive() bool {
	return c.alive.Load()
}

// markSuspect は生存状態なら応答待ちに切り替えてtrueを返す。
// 前回の確認から応答待ちのままならfalseを返す。
func (c *Connection) markSuspect() bool {
	return c.alive.CompareAndSwap(true, false)
}

// ping はpingフレームを送る。
func (c *Connection) ping() error {
	return c.transport.Ping()
}

// Close はクローズフレームを送ってから接続を閉じる。2回目以降の呼び出しは何もしない。
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		_ = c.transport.CloseWith(code, reason)
	})
}

// Terminate はクローズフレームを送らずに接続を閉じる。2回目以降の呼び出しは何もしない。
func (c *Connection) Terminate() {
	c.closeOnce.Do(func() {
		_ = c.transport.Terminate()
	})
}

// wsTransport は gorilla/websocket の接続を Transport として扱う。
type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

// newWSTransport は書き込み期限付きのTransportを生成する。
func newWSTransport(conn *websocket.Conn, writeWait time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeWait: writeWait}
}

func (t *wsTransport) WriteText(data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
}

func (t *wsTransport) CloseWith(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))
	if errors.Is(werr, websocket.ErrCloseSent) {
		werr = nil
	}
	return errors.Join(werr, t.conn.Close())
}

func (t *wsTransport) Terminate() error {
	return t.conn.Close()
}
