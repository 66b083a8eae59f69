package client

import "time"

// State はライブ接続の状態。
type State int

const (
	// StateDisconnected は接続していない状態。再接続が予約されている場合もある。
	StateDisconnected State = iota
	// StateConnecting は接続を試みていて、サーバーの受け入れを待っている状態。
	StateConnecting
	// StateOpen はサーバーに受け入れられ、通知を受信できる状態。
	StateOpen
)

// String は状態の名前を返す。
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Status はManagerの状態のスナップショット。
type Status struct {
	// State は現在の接続状態。
	State State
	// Delay は予約中の再接続までの待ち時間。予約が無い場合は次の失敗で使う待ち時間。
	Delay time.Duration
	// Failures は連続した接続失敗の回数。
	Failures int
	// Reconnecting は再接続が予約されているかどうか。
	Reconnecting bool
	// Suppressed は明示的に切断され、Connect が呼ばれるまで再接続しない状態かどうか。
	Suppressed bool
}
