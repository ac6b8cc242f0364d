package calendar

import (
	"errors"
	"time"
)

// ── 业务日历解析器 ──────────────────────────────────────────
//
// 职责：纯函数层，回答两个原语问题：
//   - 时刻 T 是否处于工作时间内？
//   - 从时刻 T 前进 N 个业务分钟落在哪个时刻？
//
// 设计决策：
//   - 无状态、确定性，可无限制并发使用
//   - 以"分钟"为最小计费单位，前进与累计两条路径一致地截断秒数
//   - 节假日是叠加在周计划上的排除集：命中节假日的整天均为非工作时间
//   - 逐日前进有上限（约 3 年）；超出上限视为配置错误（无启用工作日
//     或全年节假日），返回 ErrNoWorkingTime 交由管理员处理，绝不静默
//     退化为墙钟时间
// ─────────────────────────────────────────────────────────────

// ErrNoWorkingTime 在前瞻上限内找不到任何工作时间（计划配置错误）
var ErrNoWorkingTime = errors.New("在前瞻范围内不存在可用工作时间，请检查工作日历配置")

// MaxLookaheadDays 逐日前进的前瞻上限（天）
const MaxLookaheadDays = 1096

// maxHolidayExpansion 单个节假日区间展开的最大天数，防御异常区间
const maxHolidayExpansion = 1462

// DayWindow 一个星期几的工作窗口，分钟数自当地零点起算
type DayWindow struct {
	Enabled     bool
	StartMinute int
	EndMinute   int // 必须大于 StartMinute，不跨天
}

// Schedule 时区锚定的周工作计划
// Days 下标为 ISO 星期（1=周一 … 7=周日）
type Schedule struct {
	Location *time.Location
	Days     [8]DayWindow
}

// HolidayEntry 节假日条目：单日或 [Date, EndDate] 区间
// Recurring 为 true 时按月/日每年匹配（与年份无关）
type HolidayEntry struct {
	Date      time.Time
	EndDate   *time.Time
	Recurring bool
}

// HolidaySet 预展开的节假日集合，按日期键查询
type HolidaySet struct {
	exact     map[string]struct{} // "2006-01-02"
	recurring map[string]struct{} // "01-02"
}

// NewHolidaySet 将节假日条目展开为可查询集合
func NewHolidaySet(entries []HolidayEntry) *HolidaySet {
	hs := &HolidaySet{
		exact:     make(map[string]struct{}),
		recurring: make(map[string]struct{}),
	}
	for _, e := range entries {
		end := e.Date
		if e.EndDate != nil && e.EndDate.After(e.Date) {
			end = *e.EndDate
		}
		for d, i := e.Date, 0; !d.After(end) && i < maxHolidayExpansion; d, i = d.AddDate(0, 0, 1), i+1 {
			if e.Recurring {
				hs.recurring[d.Format("01-02")] = struct{}{}
			} else {
				hs.exact[d.Format("2006-01-02")] = struct{}{}
			}
		}
	}
	return hs
}

// Contains 判断当地日期 day 是否为节假日
func (h *HolidaySet) Contains(day time.Time) bool {
	if h == nil {
		return false
	}
	if _, ok := h.exact[day.Format("2006-01-02")]; ok {
		return true
	}
	_, ok := h.recurring[day.Format("01-02")]
	return ok
}

// isoWeekday 返回 ISO 星期（1=周一 … 7=周日）
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// minuteOfDay 返回 t 自当地零点起的分钟数（截断秒）
func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// windowFor 计算某个当地日期的工作窗口
// 节假日或未启用的星期几返回 ok=false（空窗口）
func (s *Schedule) windowFor(day time.Time, holidays *HolidaySet) (startMin, endMin int, ok bool) {
	if holidays.Contains(day) {
		return 0, 0, false
	}
	w := s.Days[isoWeekday(day)]
	if !w.Enabled || w.EndMinute <= w.StartMinute {
		return 0, 0, false
	}
	return w.StartMinute, w.EndMinute, true
}

// IsWorkingInstant 判断时刻 t 是否处于工作时间内
// 区间语义为 [start, end)；节假日整天非工作时间
func (s *Schedule) IsWorkingInstant(t time.Time, holidays *HolidaySet) bool {
	lt := t.In(s.Location)
	start, end, ok := s.windowFor(lt, holidays)
	if !ok {
		return false
	}
	m := minuteOfDay(lt)
	return m >= start && m < end
}

// AdvanceBusinessMinutes 从 from 前进 minutes 个业务分钟
//
// 逐日行走：当天窗口起点被裁剪到 max(窗口起点, 游标)；若剩余分钟数能在
// 当天窗口内耗尽则返回落点，否则扣减当天剩余并跳到次日零点。
func (s *Schedule) AdvanceBusinessMinutes(from time.Time, minutes int, holidays *HolidaySet) (time.Time, error) {
	if minutes <= 0 {
		return from, nil
	}

	cursor := from.In(s.Location)
	remaining := minutes

	for day := 0; day <= MaxLookaheadDays; day++ {
		start, end, ok := s.windowFor(cursor, holidays)
		if ok {
			cm := minuteOfDay(cursor)
			clipped := cm
			if clipped < start {
				clipped = start
			}
			if clipped < end {
				avail := end - clipped
				if remaining <= avail {
					if clipped == cm {
						// 游标已在窗口内：直接顺延，保留秒级偏移
						return cursor.Add(time.Duration(remaining) * time.Minute), nil
					}
					midnight := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, s.Location)
					return midnight.Add(time.Duration(clipped+remaining) * time.Minute), nil
				}
				remaining -= avail
			}
		}
		midnight := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, s.Location)
		cursor = midnight.AddDate(0, 0, 1)
	}

	return time.Time{}, ErrNoWorkingTime
}

// ElapsedBusinessMinutes 累计 [from, to] 区间内落在工作窗口中的分钟数
// AdvanceBusinessMinutes 的对称逆运算，供评估器计算当前进度
func (s *Schedule) ElapsedBusinessMinutes(from, to time.Time, holidays *HolidaySet) int {
	if !to.After(from) {
		return 0
	}

	lf := from.In(s.Location)
	lt := to.In(s.Location)
	total := 0
	cursor := lf

	for {
		start, end, ok := s.windowFor(cursor, holidays)
		lastDay := sameDay(cursor, lt)
		if ok {
			lo := minuteOfDay(cursor)
			if lo < start {
				lo = start
			}
			hi := end
			if lastDay && minuteOfDay(lt) < hi {
				hi = minuteOfDay(lt)
			}
			if hi > lo {
				total += hi - lo
			}
		}
		if lastDay {
			break
		}
		midnight := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, s.Location)
		cursor = midnight.AddDate(0, 0, 1)
	}

	return total
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
