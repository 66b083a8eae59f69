package realtime

import "sync"

// Registry は認証済みユーザーIDとライブ接続の集合の対応を保持する。
// ユーザーのキーは接続が1本以上ある間だけ存在する。
// ロックはネットワークI/Oをまたいで保持しない。
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Connection
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]*Connection)}
}

// Admit は接続をユーザーの集合に加える。集合が無ければ作る。
func (r *Registry) Admit(userID string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]*Connection)
		r.users[userID] = set
	}
	if _, exists := set[conn.ID]; exists {
		return
	}
	set[conn.ID] = conn
	activeConnections.Inc()
}

// Remove は接続をユーザーの集合から取り除き、集合が空になればキーごと消す。
// 既に取り除かれている場合はfalseを返す。
func (r *Registry) Remove(userID string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return false
	}
	if _, exists := set[conn.ID]; !exists {
		return false
	}
	delete(set, conn.ID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
	activeConnections.Dec()
	return true
}

// ConnectionsFor はユーザーの接続の一覧を返す。
// 返すスライスは呼び出し時点のコピーで、その後の登録・削除の影響を受けない。
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Users は接続を持つユーザーIDの一覧を返す。
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.users))
	for u := range r.users {
		users = append(users, u)
	}
	return users
}

// Snapshot は全ユーザーの全接続のコピーを返す。
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Connection
	for _, set := range r.users {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	return conns
}

// Len は登録されている接続の総数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}
