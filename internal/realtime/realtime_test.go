package realtime

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// errClosed はテスト用の送信エラー。
var errClosed = errors.New("use of closed network connection")

// fakeTransport は送受信を記録するテスト用のTransport。
type fakeTransport struct {
	mu         sync.Mutex
	writes     [][]byte
	pings      int
	writeErr   error
	pingErr    error
	closed     bool
	closeCode  int
	terminated bool
}

func (f *fakeTransport) WriteText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pingErr != nil {
		return f.pingErr
	}
	f.pings++
	return nil
}

func (f *fakeTransport) CloseWith(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	return nil
}

func (f *fakeTransport) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// newFakeConnection はfakeTransportを持つ接続を生成する。
func newFakeConnection(userID string) (*Connection, *fakeTransport) {
	ft := &fakeTransport{}
	return NewConnection(userID, ft), ft
}
