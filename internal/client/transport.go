package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// closeWait はクローズフレームの送信に許す時間。
const closeWait = time.Second

// Conn はライブチャネルの1本の接続。
type Conn interface {
	// ReadMessage は次のフレームを受信するまでブロックする。
	ReadMessage() ([]byte, error)
	// Close はクローズフレームを送ってから接続を閉じる。
	Close(code int, reason string) error
}

// Dialer はトークンを付けてライブチャネルに接続する。
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// WSDialer は gorilla/websocket でライブチャネルに接続するDialer。
type WSDialer struct {
	url    string
	dialer *websocket.Dialer
}

// NewWSDialer は接続先URL（例: ws://localhost:8086/ws）のDialerを生成する。
func NewWSDialer(rawURL string) *WSDialer {
	return &WSDialer{
		url: rawURL,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial は ?token= クエリパラメータにトークンを付けて接続する。
func (d *WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return nil, fmt.Errorf("接続先URLが不正です: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("ライブチャネルへの接続に失敗: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn は gorilla/websocket の接続を Conn として扱う。
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	if errors.Is(werr, websocket.ErrCloseSent) {
		werr = nil
	}
	return errors.Join(werr, c.conn.Close())
}
