package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
	pkgerrors "slatrack/backend/pkg/errors"
)

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	schedules map[string]*model.BusinessSchedule
	seq       int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.BusinessSchedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.BusinessSchedule) error {
	if schedule.ScheduleID == "" {
		m.seq++
		schedule.ScheduleID = fmt.Sprintf("sched-%d", m.seq)
	}
	m.schedules[schedule.ScheduleID] = schedule
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.BusinessSchedule, error) {
	if s, ok := m.schedules[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) GetDefault(_ context.Context) (*model.BusinessSchedule, error) {
	for _, s := range m.schedules {
		if s.IsDefault {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) List(_ context.Context) ([]model.BusinessSchedule, error) {
	var result []model.BusinessSchedule
	for _, s := range m.schedules {
		result = append(result, *s)
	}
	return result, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, schedule *model.BusinessSchedule) error {
	m.schedules[schedule.ScheduleID] = schedule
	return nil
}

func (m *mockScheduleRepo) ReplaceDays(_ context.Context, scheduleID string, days []model.BusinessScheduleDay) error {
	s, ok := m.schedules[scheduleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Days = days
	return nil
}

func (m *mockScheduleRepo) ClearDefault(_ context.Context) error {
	for _, s := range m.schedules {
		s.IsDefault = false
	}
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.schedules, id)
	return nil
}

// ── Mock HolidayRepository ──

type mockHolidayRepo struct {
	calendars map[string]*model.HolidayCalendar
	seq       int
}

func newMockHolidayRepo() *mockHolidayRepo {
	return &mockHolidayRepo{calendars: make(map[string]*model.HolidayCalendar)}
}

func (m *mockHolidayRepo) CreateCalendar(_ context.Context, cal *model.HolidayCalendar) error {
	if cal.CalendarID == "" {
		m.seq++
		cal.CalendarID = fmt.Sprintf("cal-%d", m.seq)
	}
	m.calendars[cal.CalendarID] = cal
	return nil
}

func (m *mockHolidayRepo) GetCalendarByID(_ context.Context, id string) (*model.HolidayCalendar, error) {
	if c, ok := m.calendars[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockHolidayRepo) ListCalendars(_ context.Context) ([]model.HolidayCalendar, error) {
	var result []model.HolidayCalendar
	for _, c := range m.calendars {
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockHolidayRepo) UpdateCalendar(_ context.Context, cal *model.HolidayCalendar) error {
	m.calendars[cal.CalendarID] = cal
	return nil
}

func (m *mockHolidayRepo) DeleteCalendar(_ context.Context, id string, _ string) error {
	delete(m.calendars, id)
	return nil
}

func (m *mockHolidayRepo) AddHoliday(_ context.Context, holiday *model.Holiday) error {
	c, ok := m.calendars[holiday.CalendarID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if holiday.HolidayID == "" {
		m.seq++
		holiday.HolidayID = fmt.Sprintf("hol-%d", m.seq)
	}
	c.Holidays = append(c.Holidays, *holiday)
	return nil
}

func (m *mockHolidayRepo) AddHolidays(ctx context.Context, holidays []model.Holiday) error {
	for i := range holidays {
		if err := m.AddHoliday(ctx, &holidays[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockHolidayRepo) DeleteHoliday(_ context.Context, calendarID, holidayID string) error {
	c, ok := m.calendars[calendarID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range c.Holidays {
		if c.Holidays[i].HolidayID == holidayID {
			c.Holidays = append(c.Holidays[:i], c.Holidays[i+1:]...)
			return nil
		}
	}
	return nil
}

// ── Mock DefinitionRepository ──

type mockDefinitionRepo struct {
	defs map[string]*model.SLADefinition
	seq  int
}

func newMockDefinitionRepo() *mockDefinitionRepo {
	return &mockDefinitionRepo{defs: make(map[string]*model.SLADefinition)}
}

func (m *mockDefinitionRepo) Create(_ context.Context, def *model.SLADefinition) error {
	m.seq++
	if def.DefinitionID == "" {
		def.DefinitionID = fmt.Sprintf("def-%d", m.seq)
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	}
	m.defs[def.DefinitionID] = def
	return nil
}

func (m *mockDefinitionRepo) GetByID(_ context.Context, id string) (*model.SLADefinition, error) {
	if d, ok := m.defs[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// List 与真实实现保持同样的排序：priority DESC, created_at ASC
func (m *mockDefinitionRepo) List(_ context.Context, activeOnly bool) ([]model.SLADefinition, error) {
	var result []model.SLADefinition
	for _, d := range m.defs {
		if activeOnly && !d.IsActive {
			continue
		}
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockDefinitionRepo) Update(_ context.Context, def *model.SLADefinition) error {
	m.defs[def.DefinitionID] = def
	return nil
}

func (m *mockDefinitionRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.defs, id)
	return nil
}

// ── Mock TrackerRepository ──

type mockTrackerRepo struct {
	trackers map[string]*model.SLATracker
	events   []model.TrackerEvent
	seq      int
}

func newMockTrackerRepo() *mockTrackerRepo {
	return &mockTrackerRepo{trackers: make(map[string]*model.SLATracker)}
}

func (m *mockTrackerRepo) Create(_ context.Context, tracker *model.SLATracker) error {
	if tracker.CorrelationID != nil {
		for _, t := range m.trackers {
			if t.CorrelationID != nil && *t.CorrelationID == *tracker.CorrelationID {
				return fmt.Errorf("duplicate key value violates unique constraint")
			}
		}
	}
	m.seq++
	if tracker.TrackerID == "" {
		tracker.TrackerID = fmt.Sprintf("trk-%d", m.seq)
	}
	clone := *tracker
	m.trackers[tracker.TrackerID] = &clone
	return nil
}

// GetByID 返回副本，模拟独立的数据库读取
func (m *mockTrackerRepo) GetByID(_ context.Context, id string) (*model.SLATracker, error) {
	if t, ok := m.trackers[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrackerRepo) GetByCorrelationID(_ context.Context, correlationID string) (*model.SLATracker, error) {
	for _, t := range m.trackers {
		if t.CorrelationID != nil && *t.CorrelationID == correlationID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrackerRepo) List(_ context.Context, filter *repository.TrackerFilter) ([]model.SLATracker, int64, error) {
	var result []model.SLATracker
	for _, t := range m.trackers {
		if filter.DefinitionID != "" && t.DefinitionID != filter.DefinitionID {
			continue
		}
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		if filter.RecordType != "" && t.RecordType != filter.RecordType {
			continue
		}
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockTrackerRepo) ListActive(_ context.Context) ([]model.SLATracker, error) {
	var result []model.SLATracker
	for _, t := range m.trackers {
		if t.Status == model.TrackerStatusActive {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTrackerRepo) ListFinishedBetween(_ context.Context, from, to time.Time) ([]model.SLATracker, error) {
	var result []model.SLATracker
	for _, t := range m.trackers {
		if t.FinishedAt == nil {
			continue
		}
		if t.FinishedAt.After(from) && !t.FinishedAt.After(to) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FinishedAt.Before(*result[j].FinishedAt)
	})
	return result, nil
}

// UpdateCAS 与真实实现一致：version 或状态不匹配时返回 ErrOptimisticLock
func (m *mockTrackerRepo) UpdateCAS(_ context.Context, tracker *model.SLATracker, expectStatus model.TrackerStatus) error {
	stored, ok := m.trackers[tracker.TrackerID]
	if !ok || stored.Version != tracker.Version || stored.Status != expectStatus {
		return pkgerrors.ErrOptimisticLock
	}
	clone := *tracker
	clone.Version++
	m.trackers[tracker.TrackerID] = &clone
	tracker.Version++
	return nil
}

func (m *mockTrackerRepo) AppendEvent(_ context.Context, event *model.TrackerEvent) error {
	m.seq++
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("evt-%d", m.seq)
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockTrackerRepo) HasEventWithCorrelation(_ context.Context, trackerID, correlationID string) (bool, error) {
	for _, e := range m.events {
		if e.TrackerID == trackerID && e.CorrelationID != nil && *e.CorrelationID == correlationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTrackerRepo) ListEvents(_ context.Context, trackerID string) ([]model.TrackerEvent, error) {
	var result []model.TrackerEvent
	for _, e := range m.events {
		if e.TrackerID == trackerID {
			result = append(result, e)
		}
	}
	return result, nil
}

// ── Mock MetricRepository ──

type mockMetricRepo struct {
	metrics    map[string]*model.SLAMetric
	watermarks map[string]time.Time
}

func newMockMetricRepo() *mockMetricRepo {
	return &mockMetricRepo{
		metrics:    make(map[string]*model.SLAMetric),
		watermarks: make(map[string]time.Time),
	}
}

func metricKey(definitionID string, periodType model.PeriodType, periodStart time.Time) string {
	return fmt.Sprintf("%s|%s|%s", definitionID, periodType, periodStart.Format("2006-01-02"))
}

func (m *mockMetricRepo) Get(_ context.Context, definitionID string, periodType model.PeriodType, periodStart time.Time) (*model.SLAMetric, error) {
	if metric, ok := m.metrics[metricKey(definitionID, periodType, periodStart)]; ok {
		clone := *metric
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMetricRepo) Upsert(_ context.Context, metric *model.SLAMetric) error {
	clone := *metric
	m.metrics[metricKey(metric.DefinitionID, metric.PeriodType, metric.PeriodStart)] = &clone
	return nil
}

func (m *mockMetricRepo) Query(_ context.Context, filter *repository.MetricFilter) ([]model.SLAMetric, error) {
	var result []model.SLAMetric
	for _, metric := range m.metrics {
		if filter.DefinitionID != "" && metric.DefinitionID != filter.DefinitionID {
			continue
		}
		if filter.PeriodType != "" && string(metric.PeriodType) != filter.PeriodType {
			continue
		}
		if filter.From != nil && metric.PeriodStart.Before(*filter.From) {
			continue
		}
		if filter.To != nil && metric.PeriodStart.After(*filter.To) {
			continue
		}
		result = append(result, *metric)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result, nil
}

func (m *mockMetricRepo) GetWatermark(_ context.Context, jobName string) (*model.RollupWatermark, error) {
	if t, ok := m.watermarks[jobName]; ok {
		return &model.RollupWatermark{JobName: jobName, LastProcessedAt: t}, nil
	}
	return nil, nil
}

func (m *mockMetricRepo) SetWatermark(_ context.Context, jobName string, processedAt time.Time) error {
	m.watermarks[jobName] = processedAt
	return nil
}

// ── 聚合辅助 ──

type testRepos struct {
	schedule   *mockScheduleRepo
	holiday    *mockHolidayRepo
	definition *mockDefinitionRepo
	tracker    *mockTrackerRepo
	metric     *mockMetricRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		schedule:   newMockScheduleRepo(),
		holiday:    newMockHolidayRepo(),
		definition: newMockDefinitionRepo(),
		tracker:    newMockTrackerRepo(),
		metric:     newMockMetricRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Schedule:   r.schedule,
		Holiday:    r.holiday,
		Definition: r.definition,
		Tracker:    r.tracker,
		Metric:     r.metric,
	}
}

// seedWeekdaySchedule 种子数据：默认计划，周一到周五 09:00-17:00，UTC
func seedWeekdaySchedule(repos *testRepos) *model.BusinessSchedule {
	schedule := &model.BusinessSchedule{
		ScheduleID: "sched-weekday",
		Name:       "标准工作周",
		Timezone:   "UTC",
		IsDefault:  true,
	}
	for dow := 1; dow <= 5; dow++ {
		schedule.Days = append(schedule.Days, model.BusinessScheduleDay{
			ScheduleID: schedule.ScheduleID,
			DayOfWeek:  dow,
			Enabled:    true,
			StartTime:  "09:00",
			EndTime:    "17:00",
		})
	}
	repos.schedule.schedules[schedule.ScheduleID] = schedule
	return schedule
}

// seedDefinition 种子数据：120 分钟业务工时定义，75% 告警阈值
func seedDefinition(repos *testRepos, id string, priority int, conditions map[string]string) *model.SLADefinition {
	def := &model.SLADefinition{
		DefinitionID:            id,
		Name:                    "定义 " + id,
		TargetMinutes:           120,
		UseBusinessHours:        true,
		WarningThresholdPercent: 75,
		ApplicableConditions:    model.ConditionMap(conditions),
		Priority:                priority,
		IsActive:                true,
	}
	def.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(repos.definition.defs)) * time.Minute)
	repos.definition.defs[id] = def
	return def
}
