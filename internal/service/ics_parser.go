package service

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 内容解析为节假日条目列表。
//
// 设计决策：
//   - 只取事件的日期部分：节假日按"整天非工作"语义叠加到工作计划上
//   - DTEND 比 DTSTART 晚一天以上时视为区间节假日（DTEND 为排他边界）
//   - RRULE FREQ=YEARLY 的事件识别为每年重复节假日
//   - 其余 RRULE 形态不展开，按单次事件处理
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
)

// parsedHoliday ICS 解析中间结构
type parsedHoliday struct {
	Name      string
	Date      time.Time
	EndDate   *time.Time
	Recurring bool
}

// fetchICSContent 从 URL 获取 ICS 内容
func fetchICSContent(rawURL string) (string, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return "", fmt.Errorf("获取 ICS 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, icsMaxFileSize))
	if err != nil {
		return "", fmt.Errorf("读取 ICS 内容失败: %w", err)
	}
	return string(data), nil
}

// parseHolidayICS 解析 ICS 内容为节假日条目
func parseHolidayICS(content string) ([]parsedHoliday, error) {
	cal, err := ics.ParseCalendar(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("解析 ICS 失败: %w", err)
	}

	var holidays []parsedHoliday
	for _, event := range cal.Events() {
		name := ""
		if p := event.GetProperty(ics.ComponentPropertySummary); p != nil {
			name = p.Value
		}
		if name == "" {
			continue
		}

		start, err := eventStartDate(event)
		if err != nil {
			continue // 无法确定日期的事件跳过
		}
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

		var endDate *time.Time
		if end, err := eventEndDate(event); err == nil {
			// DTEND 为排他边界：减一天得到最后一个节假日日期
			last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
			if last.After(date) {
				endDate = &last
			}
		}

		holidays = append(holidays, parsedHoliday{
			Name:      name,
			Date:      date,
			EndDate:   endDate,
			Recurring: isYearlyRecurring(event),
		})
	}
	return holidays, nil
}

func eventStartDate(event *ics.VEvent) (time.Time, error) {
	if t, err := event.GetAllDayStartAt(); err == nil {
		return t, nil
	}
	return event.GetStartAt()
}

func eventEndDate(event *ics.VEvent) (time.Time, error) {
	if t, err := event.GetAllDayEndAt(); err == nil {
		return t, nil
	}
	return event.GetEndAt()
}

// isYearlyRecurring 识别 RRULE FREQ=YEARLY 的每年重复事件
func isYearlyRecurring(event *ics.VEvent) bool {
	p := event.GetProperty(ics.ComponentPropertyRrule)
	if p == nil {
		return false
	}
	return strings.Contains(strings.ToUpper(p.Value), "FREQ=YEARLY")
}
