package calendar

import "time"

// Accounting 统一的计时口径
// Schedule 为 nil 时按自然时间计时，否则按业务工时计时
type Accounting struct {
	Schedule *Schedule
	Holidays *HolidaySet
}

// NaturalTime 自然时间口径（24×7，无节假日）
func NaturalTime() *Accounting { return &Accounting{} }

// Advance 从 from 起前进 minutes 分钟
func (a *Accounting) Advance(from time.Time, minutes int) (time.Time, error) {
	if a.Schedule == nil {
		return from.Add(time.Duration(minutes) * time.Minute), nil
	}
	return a.Schedule.AdvanceBusinessMinutes(from, minutes, a.Holidays)
}

// Elapsed 计算 [from, to) 内的可计费分钟数，向下取整
func (a *Accounting) Elapsed(from, to time.Time) int {
	if a.Schedule == nil {
		if !to.After(from) {
			return 0
		}
		return int(to.Sub(from).Minutes())
	}
	return a.Schedule.ElapsedBusinessMinutes(from, to, a.Holidays)
}
