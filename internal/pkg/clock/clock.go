package clock

import "time"

// Clock は現在時刻の取得を抽象化する
// 有効期限まわりのロジックを決定的にテストするために注入して使う
type Clock interface {
	Now() time.Time
}

// Real は実時刻を返すClock
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// New は実時刻ベースのClockを返す
func New() Clock { return Real{} }

// Fixed は固定時刻を返すClock（テスト用）
type Fixed struct {
	Time time.Time
}

func (f *Fixed) Now() time.Time { return f.Time }

// Advance は固定時刻を進める
func (f *Fixed) Advance(d time.Duration) { f.Time = f.Time.Add(d) }
