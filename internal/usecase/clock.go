package usecase

import (
	"sync"
	"time"
)

// Clock はUNIXエポックからのナノ秒を返す時刻源。
type Clock interface {
	Now() uint64
}

// SystemClock はOSの壁時計を使うClock。
type SystemClock struct{}

// Now は現在時刻をナノ秒で返す。
func (SystemClock) Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// ClockFunc は関数をClockとして使うためのアダプタ。
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// MonotonicClock は狭義単調増加するタイムスタンプを返す。
// 時刻源が同じ値や過去の値を返した場合は直前の値 + 1ns を返す。
type MonotonicClock struct {
	source Clock

	mu   sync.Mutex
	last uint64
}

// NewMonotonicClock は floor より大きい値だけを返すMonotonicClockを生成する。
func NewMonotonicClock(source Clock, floor uint64) *MonotonicClock {
	return &MonotonicClock{source: source, last: floor}
}

// Now は前回より大きいタイムスタンプを返す。
func (c *MonotonicClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.source.Now()
	if t <= c.last {
		t = c.last + 1
	}
	c.last = t
	return t
}

// Last は最後に払い出したタイムスタンプを返す。
func (c *MonotonicClock) Last() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
