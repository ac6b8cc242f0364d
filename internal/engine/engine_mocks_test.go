package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
	pkgerrors "slatrack/backend/pkg/errors"
)

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	schedules map[string]*model.BusinessSchedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.BusinessSchedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.BusinessSchedule) error {
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

func (m *mockScheduleRepo) List(_ context.Context) ([]model.BusinessSchedule, error) { return nil, nil }
func (m *mockScheduleRepo) Update(_ context.Context, _ *model.BusinessSchedule) error {
	return nil
}
func (m *mockScheduleRepo) ReplaceDays(_ context.Context, _ string, _ []model.BusinessScheduleDay) error {
	return nil
}
func (m *mockScheduleRepo) ClearDefault(_ context.Context) error               { return nil }
func (m *mockScheduleRepo) Delete(_ context.Context, _ string, _ string) error { return nil }

// ── Mock HolidayRepository ──

type mockHolidayRepo struct {
	calendars map[string]*model.HolidayCalendar
}

func newMockHolidayRepo() *mockHolidayRepo {
	return &mockHolidayRepo{calendars: make(map[string]*model.HolidayCalendar)}
}

func (m *mockHolidayRepo) CreateCalendar(_ context.Context, cal *model.HolidayCalendar) error {
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
	return nil, nil
}
func (m *mockHolidayRepo) UpdateCalendar(_ context.Context, _ *model.HolidayCalendar) error {
	return nil
}
func (m *mockHolidayRepo) DeleteCalendar(_ context.Context, _ string, _ string) error { return nil }
func (m *mockHolidayRepo) AddHoliday(_ context.Context, _ *model.Holiday) error       { return nil }
func (m *mockHolidayRepo) AddHolidays(_ context.Context, _ []model.Holiday) error     { return nil }
func (m *mockHolidayRepo) DeleteHoliday(_ context.Context, _, _ string) error         { return nil }

// ── Mock DefinitionRepository ──

type mockDefinitionRepo struct {
	defs map[string]*model.SLADefinition
}

func newMockDefinitionRepo() *mockDefinitionRepo {
	return &mockDefinitionRepo{defs: make(map[string]*model.SLADefinition)}
}

func (m *mockDefinitionRepo) Create(_ context.Context, def *model.SLADefinition) error {
	m.defs[def.DefinitionID] = def
	return nil
}

func (m *mockDefinitionRepo) GetByID(_ context.Context, id string) (*model.SLADefinition, error) {
	if d, ok := m.defs[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDefinitionRepo) List(_ context.Context, _ bool) ([]model.SLADefinition, error) {
	return nil, nil
}
func (m *mockDefinitionRepo) Update(_ context.Context, _ *model.SLADefinition) error { return nil }
func (m *mockDefinitionRepo) Delete(_ context.Context, _ string, _ string) error     { return nil }

// ── Mock TrackerRepository ──
//
// 评估器 worker 并发写入，方法内持锁

type mockTrackerRepo struct {
	mu       sync.Mutex
	trackers map[string]*model.SLATracker
	events   []model.TrackerEvent
	casErr   error // 非 nil 时 UpdateCAS 固定返回该错误（模拟并发抢先）
	seq      int
}

func newMockTrackerRepo() *mockTrackerRepo {
	return &mockTrackerRepo{trackers: make(map[string]*model.SLATracker)}
}

func (m *mockTrackerRepo) Create(_ context.Context, tracker *model.SLATracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *tracker
	m.trackers[tracker.TrackerID] = &clone
	return nil
}

func (m *mockTrackerRepo) GetByID(_ context.Context, id string) (*model.SLATracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trackers[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrackerRepo) GetByCorrelationID(_ context.Context, _ string) (*model.SLATracker, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrackerRepo) List(_ context.Context, _ *repository.TrackerFilter) ([]model.SLATracker, int64, error) {
	return nil, 0, nil
}

func (m *mockTrackerRepo) ListActive(_ context.Context) ([]model.SLATracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SLATracker
	for _, t := range m.trackers {
		if t.Status == model.TrackerStatusActive {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTrackerRepo) ListFinishedBetween(_ context.Context, from, to time.Time) ([]model.SLATracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockTrackerRepo) UpdateCAS(_ context.Context, tracker *model.SLATracker, expectStatus model.TrackerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.casErr != nil {
		return m.casErr
	}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("evt-%d", m.seq)
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockTrackerRepo) HasEventWithCorrelation(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (m *mockTrackerRepo) ListEvents(_ context.Context, trackerID string) ([]model.TrackerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	getErr     error // 非 nil 时 Get 固定返回该错误（模拟查询故障）
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
	if m.getErr != nil {
		return nil, m.getErr
	}
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

func (m *mockMetricRepo) Query(_ context.Context, _ *repository.MetricFilter) ([]model.SLAMetric, error) {
	return nil, nil
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

// ── 记录型分发器 ──

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []ActionRequest
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req *ActionRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, *req)
	return nil
}

func (d *recordingDispatcher) all() []ActionRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ActionRequest(nil), d.requests...)
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
