package clock

import "time"

// Clock 可注入的时间源
// 引擎内所有"当前时间"均通过 Clock 获取，便于确定性测试与重放
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real 返回系统时钟
func Real() Clock { return realClock{} }

// Fixed 固定时钟，可手动推进（测试用）
type Fixed struct {
	Current time.Time
}

// NewFixed 以指定时间创建固定时钟
func NewFixed(t time.Time) *Fixed { return &Fixed{Current: t} }

func (f *Fixed) Now() time.Time { return f.Current }

// Advance 将固定时钟向前推进 d
func (f *Fixed) Advance(d time.Duration) { f.Current = f.Current.Add(d) }
