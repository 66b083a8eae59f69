package client

import "sync"

// TokenSource はログイン中のセッションのJWTを返す。未ログインなら空文字を返す。
type TokenSource interface {
	Token() string
}

// Session はログイン状態を保持するTokenSource。
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession はトークンを持つセッションを生成する。空ならログアウト状態になる。
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token は現在のトークンを返す。
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken はログインまたはトークン更新時に呼ぶ。
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear はログアウト時に呼ぶ。
func (s *Session) Clear() {
	s.SetToken("")
}

// LoggedIn はトークンを持っているかどうかを返す。
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}
