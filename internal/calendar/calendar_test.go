package calendar

import (
	"errors"
	"testing"
	"time"
)

// 标准测试计划：周一至周五 09:00–17:00（UTC）
func standardSchedule() *Schedule {
	s := &Schedule{Location: time.UTC}
	for d := 1; d <= 5; d++ {
		s.Days[d] = DayWindow{Enabled: true, StartMinute: 9 * 60, EndMinute: 17 * 60}
	}
	return s
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return parsed
}

// ── IsWorkingInstant ──

func TestIsWorkingInstant(t *testing.T) {
	s := standardSchedule()

	cases := []struct {
		name string
		at   string
		want bool
	}{
		{"周三工作时间内", "2025-03-05T10:00:00Z", true},
		{"周三窗口起点", "2025-03-05T09:00:00Z", true},
		{"周三窗口终点为开区间", "2025-03-05T17:00:00Z", false},
		{"周三窗口之前", "2025-03-05T08:59:00Z", false},
		{"周六全天非工作", "2025-03-08T10:00:00Z", false},
		{"周日全天非工作", "2025-03-09T10:00:00Z", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.IsWorkingInstant(mustParse(t, tc.at), nil)
			if got != tc.want {
				t.Errorf("IsWorkingInstant(%s) = %v，期望 %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestIsWorkingInstant_Holiday(t *testing.T) {
	s := standardSchedule()
	hs := NewHolidaySet([]HolidayEntry{
		{Date: mustParse(t, "2025-03-05T00:00:00Z")},
	})

	if s.IsWorkingInstant(mustParse(t, "2025-03-05T10:00:00Z"), hs) {
		t.Error("节假日应整天非工作时间")
	}
	if !s.IsWorkingInstant(mustParse(t, "2025-03-06T10:00:00Z"), hs) {
		t.Error("节假日次日应为工作时间")
	}
}

func TestIsWorkingInstant_RecurringHoliday(t *testing.T) {
	s := standardSchedule()
	// 2024-01-01 定义的每年重复节假日应命中 2025-01-01（周三）
	hs := NewHolidaySet([]HolidayEntry{
		{Date: mustParse(t, "2024-01-01T00:00:00Z"), Recurring: true},
	})

	if s.IsWorkingInstant(mustParse(t, "2025-01-01T10:00:00Z"), hs) {
		t.Error("重复节假日应按月/日匹配任意年份")
	}
}

// ── AdvanceBusinessMinutes ──

func TestAdvance_ZeroMinutes(t *testing.T) {
	s := standardSchedule()
	at := mustParse(t, "2025-03-08T13:45:00Z") // 周六，非工作时间

	got, err := s.AdvanceBusinessMinutes(at, 0, nil)
	if err != nil {
		t.Fatalf("前进 0 分钟应成功: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("前进 0 分钟应返回原时刻，实际=%v", got)
	}
}

func TestAdvance_WithinSameDay(t *testing.T) {
	s := standardSchedule()
	// 周三 10:00 + 120 分钟 → 周三 12:00
	got, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-05T10:00:00Z"), 120, nil)
	if err != nil {
		t.Fatalf("前进应成功: %v", err)
	}
	want := mustParse(t, "2025-03-05T12:00:00Z")
	if !got.Equal(want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}

// 场景 A：周五 16:00 起 120 分钟 → 下周一 10:00（周五 1 小时 + 周一 1 小时）
func TestAdvance_SpansWeekend(t *testing.T) {
	s := standardSchedule()

	got, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-07T16:00:00Z"), 120, nil)
	if err != nil {
		t.Fatalf("前进应成功: %v", err)
	}
	want := mustParse(t, "2025-03-10T10:00:00Z")
	if !got.Equal(want) {
		t.Errorf("期望周一 10:00 (%v)，实际 %v", want, got)
	}
}

// 场景 B：下周一为节假日 → 截止时间顺延至周二 10:00
func TestAdvance_SpansWeekendAndHoliday(t *testing.T) {
	s := standardSchedule()
	hs := NewHolidaySet([]HolidayEntry{
		{Date: mustParse(t, "2025-03-10T00:00:00Z")},
	})

	got, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-07T16:00:00Z"), 120, hs)
	if err != nil {
		t.Fatalf("前进应成功: %v", err)
	}
	want := mustParse(t, "2025-03-11T10:00:00Z")
	if !got.Equal(want) {
		t.Errorf("期望周二 10:00 (%v)，实际 %v", want, got)
	}
}

// 工作时间之外开始：落点应严格晚于下一个窗口起点
func TestAdvance_StartOutsideWorkingHours(t *testing.T) {
	s := standardSchedule()
	// 周六 13:00 起 30 分钟 → 周一 09:30
	got, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-08T13:00:00Z"), 30, nil)
	if err != nil {
		t.Fatalf("前进应成功: %v", err)
	}
	want := mustParse(t, "2025-03-10T09:30:00Z")
	if !got.Equal(want) {
		t.Errorf("期望周一 09:30 (%v)，实际 %v", want, got)
	}
	nextWindowStart := mustParse(t, "2025-03-10T09:00:00Z")
	if !got.After(nextWindowStart) {
		t.Error("落点应严格晚于下一个窗口起点")
	}
}

func TestAdvance_Monotonic(t *testing.T) {
	s := standardSchedule()
	from := mustParse(t, "2025-03-07T16:00:00Z")

	prev := from
	for _, m := range []int{0, 1, 59, 60, 61, 120, 480, 2400} {
		got, err := s.AdvanceBusinessMinutes(from, m, nil)
		if err != nil {
			t.Fatalf("前进 %d 分钟应成功: %v", m, err)
		}
		if got.Before(prev) {
			t.Errorf("前进 %d 分钟的落点 %v 早于更小分钟数的落点 %v", m, got, prev)
		}
		prev = got
	}
}

func TestAdvance_NoWorkingTime(t *testing.T) {
	s := &Schedule{Location: time.UTC} // 零启用日的计划合法，但使用时报错

	_, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-05T10:00:00Z"), 60, nil)
	if !errors.Is(err, ErrNoWorkingTime) {
		t.Errorf("期望 ErrNoWorkingTime，实际: %v", err)
	}
}

// ── ElapsedBusinessMinutes ──

func TestElapsed_RoundTrip(t *testing.T) {
	s := standardSchedule()
	hs := NewHolidaySet([]HolidayEntry{
		{Date: mustParse(t, "2025-03-10T00:00:00Z")},
	})
	from := mustParse(t, "2025-03-07T16:00:00Z")

	// 往返律：elapsed(t, advance(t, m)) == m
	for _, m := range []int{0, 1, 30, 60, 120, 480, 960, 2400} {
		target, err := s.AdvanceBusinessMinutes(from, m, hs)
		if err != nil {
			t.Fatalf("前进 %d 分钟应成功: %v", m, err)
		}
		got := s.ElapsedBusinessMinutes(from, target, hs)
		if got != m {
			t.Errorf("往返律失败: advance(%d) 后 elapsed=%d", m, got)
		}
	}
}

func TestElapsed_OutsideWorkingHours(t *testing.T) {
	s := standardSchedule()

	// 周五 17:00 → 周一 09:00 之间无任何业务分钟
	got := s.ElapsedBusinessMinutes(
		mustParse(t, "2025-03-07T17:00:00Z"),
		mustParse(t, "2025-03-10T09:00:00Z"),
		nil,
	)
	if got != 0 {
		t.Errorf("周末区间业务分钟应为 0，实际=%d", got)
	}
}

func TestElapsed_SpansMultipleDays(t *testing.T) {
	s := standardSchedule()

	// 周四 16:00 → 周一 10:00：周四 1h + 周五 8h + 周一 1h = 600 分钟
	got := s.ElapsedBusinessMinutes(
		mustParse(t, "2025-03-06T16:00:00Z"),
		mustParse(t, "2025-03-10T10:00:00Z"),
		nil,
	)
	if got != 600 {
		t.Errorf("期望 600 分钟，实际=%d", got)
	}
}

func TestElapsed_ReversedRange(t *testing.T) {
	s := standardSchedule()

	got := s.ElapsedBusinessMinutes(
		mustParse(t, "2025-03-05T12:00:00Z"),
		mustParse(t, "2025-03-05T10:00:00Z"),
		nil,
	)
	if got != 0 {
		t.Errorf("倒置区间应返回 0，实际=%d", got)
	}
}

// ── 时区 ──

func TestAdvance_TimezoneAware(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("无法加载时区: %v", err)
	}
	s := &Schedule{Location: loc}
	for d := 1; d <= 5; d++ {
		s.Days[d] = DayWindow{Enabled: true, StartMinute: 9 * 60, EndMinute: 17 * 60}
	}

	// UTC 周三 00:00 = 上海周三 08:00，前进 60 分钟 → 上海 10:00（UTC 02:00）
	got, err := s.AdvanceBusinessMinutes(mustParse(t, "2025-03-05T00:00:00Z"), 60, nil)
	if err != nil {
		t.Fatalf("前进应成功: %v", err)
	}
	want := mustParse(t, "2025-03-05T02:00:00Z")
	if !got.Equal(want) {
		t.Errorf("期望 %v，实际 %v", want, got)
	}
}
