package client

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultBackoffFloor は再接続待ち時間の既定の初期値。
	DefaultBackoffFloor = 2 * time.Second
	// DefaultBackoffCeiling は再接続待ち時間の既定の上限。
	DefaultBackoffCeiling = 60 * time.Second
)

// newDoublingBackOff はfloorから倍々に増え、ceilingで頭打ちになる揺らぎ無しのバックオフを返す。
// k回連続で失敗した後の待ち時間は min(floor*2^(k-1), ceiling) になる。
func newDoublingBackOff(floor, ceiling time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     floor,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         ceiling,
	}
	b.Reset()
	return b
}
