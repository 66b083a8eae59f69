package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// errDial はテスト用の接続エラー。
var errDial = errors.New("connection refused")

// recordingAlerter は表示要求を記録するテスト用のAlerter。
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlerter) Alert(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingAlerter) snapshot() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

func (r *recordingAlerter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// fakeConn はフレームをチャネルから返すテスト用のConn。
type fakeConn struct {
	frames chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	closeCode int
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case err := <-c.errs:
		return nil, err
	default:
	}
	select {
	case data := <-c.frames:
		return data, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close(code int, _ string) error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// fakeDialer は接続要求を数え、n回目の結果をnextで決めるテスト用のDialer。
type fakeDialer struct {
	mu     sync.Mutex
	dials  int
	tokens []string
	next   func(n int) (Conn, error)
}

func (d *fakeDialer) Dial(_ context.Context, token string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.tokens = append(d.tokens, token)
	d.mu.Unlock()
	return d.next(n)
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// alwaysFail は常に失敗するDialerを返す。
func alwaysFail() *fakeDialer {
	return &fakeDialer{next: func(int) (Conn, error) { return nil, errDial }}
}

// startManager はManagerのイベントループを起動し、テスト終了時に止める。
func startManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitFor は条件が満たされるまで待つ。
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("待機がタイムアウトしました: %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
