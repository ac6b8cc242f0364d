package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slatrack/backend/internal/dto"
	"slatrack/backend/internal/model"
	"slatrack/backend/internal/repository"
)

// ── 节假日日历模块业务错误 ──

var (
	ErrHolidayCalendarNotFound = errors.New("节假日日历不存在")
	ErrHolidayNotFound         = errors.New("节假日条目不存在")
	ErrHolidayInvalidDate      = errors.New("无效的日期格式，应为 YYYY-MM-DD")
	ErrHolidayInvalidRange     = errors.New("结束日期不能早于开始日期")
	ErrICSEmptyRequest         = errors.New("url 与 content 必须提供其一")
)

const holidayDateLayout = "2006-01-02"

// HolidayService 节假日日历业务接口
type HolidayService interface {
	CreateCalendar(ctx context.Context, req *dto.CreateHolidayCalendarRequest, callerID string) (*dto.HolidayCalendarResponse, error)
	GetCalendar(ctx context.Context, id string) (*dto.HolidayCalendarResponse, error)
	ListCalendars(ctx context.Context) ([]dto.HolidayCalendarResponse, error)
	UpdateCalendar(ctx context.Context, id string, req *dto.UpdateHolidayCalendarRequest, callerID string) (*dto.HolidayCalendarResponse, error)
	DeleteCalendar(ctx context.Context, id string, callerID string) error
	AddHoliday(ctx context.Context, calendarID string, req *dto.CreateHolidayRequest, callerID string) (*dto.HolidayResponse, error)
	DeleteHoliday(ctx context.Context, calendarID, holidayID string) error
	ImportICS(ctx context.Context, calendarID string, req *dto.ImportICSRequest, callerID string) (*dto.ImportICSResponse, error)
}

type holidayService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewHolidayService 创建 HolidayService 实例
func NewHolidayService(repo *repository.Repository, logger *zap.Logger) HolidayService {
	return &holidayService{repo: repo, logger: logger}
}

// ────────────────────── 日历 CRUD ──────────────────────

func (s *holidayService) CreateCalendar(ctx context.Context, req *dto.CreateHolidayCalendarRequest, callerID string) (*dto.HolidayCalendarResponse, error) {
	cal := &model.HolidayCalendar{
		Name:        req.Name,
		Description: req.Description,
	}
	cal.CreatedBy = &callerID
	cal.UpdatedBy = &callerID

	if err := s.repo.Holiday.CreateCalendar(ctx, cal); err != nil {
		s.logger.Error("创建节假日日历失败", zap.Error(err))
		return nil, err
	}
	return toCalendarResponse(cal), nil
}

func (s *holidayService) GetCalendar(ctx context.Context, id string) (*dto.HolidayCalendarResponse, error) {
	cal, err := s.repo.Holiday.GetCalendarByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolidayCalendarNotFound
		}
		s.logger.Error("查询节假日日历失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toCalendarResponse(cal), nil
}

func (s *holidayService) ListCalendars(ctx context.Context) ([]dto.HolidayCalendarResponse, error) {
	cals, err := s.repo.Holiday.ListCalendars(ctx)
	if err != nil {
		s.logger.Error("列出节假日日历失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.HolidayCalendarResponse, 0, len(cals))
	for i := range cals {
		result = append(result, *toCalendarResponse(&cals[i]))
	}
	return result, nil
}

func (s *holidayService) UpdateCalendar(ctx context.Context, id string, req *dto.UpdateHolidayCalendarRequest, callerID string) (*dto.HolidayCalendarResponse, error) {
	cal, err := s.repo.Holiday.GetCalendarByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolidayCalendarNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		cal.Name = *req.Name
	}
	if req.Description != nil {
		cal.Description = *req.Description
	}
	cal.UpdatedBy = &callerID

	if err := s.repo.Holiday.UpdateCalendar(ctx, cal); err != nil {
		s.logger.Error("更新节假日日历失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toCalendarResponse(cal), nil
}

func (s *holidayService) DeleteCalendar(ctx context.Context, id string, callerID string) error {
	if _, err := s.repo.Holiday.GetCalendarByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHolidayCalendarNotFound
		}
		return err
	}
	if err := s.repo.Holiday.DeleteCalendar(ctx, id, callerID); err != nil {
		s.logger.Error("删除节假日日历失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 节假日条目 ──────────────────────

func (s *holidayService) AddHoliday(ctx context.Context, calendarID string, req *dto.CreateHolidayRequest, callerID string) (*dto.HolidayResponse, error) {
	if _, err := s.repo.Holiday.GetCalendarByID(ctx, calendarID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolidayCalendarNotFound
		}
		return nil, err
	}

	date, err := time.Parse(holidayDateLayout, req.Date)
	if err != nil {
		return nil, ErrHolidayInvalidDate
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := time.Parse(holidayDateLayout, *req.EndDate)
		if err != nil {
			return nil, ErrHolidayInvalidDate
		}
		if parsed.Before(date) {
			return nil, ErrHolidayInvalidRange
		}
		endDate = &parsed
	}

	holiday := &model.Holiday{
		CalendarID:  calendarID,
		Name:        req.Name,
		Date:        date,
		EndDate:     endDate,
		IsRecurring: req.IsRecurring,
	}
	holiday.CreatedBy = &callerID
	holiday.UpdatedBy = &callerID

	if err := s.repo.Holiday.AddHoliday(ctx, holiday); err != nil {
		s.logger.Error("添加节假日失败", zap.String("calendar_id", calendarID), zap.Error(err))
		return nil, err
	}
	return toHolidayResponse(holiday), nil
}

func (s *holidayService) DeleteHoliday(ctx context.Context, calendarID, holidayID string) error {
	if err := s.repo.Holiday.DeleteHoliday(ctx, calendarID, holidayID); err != nil {
		s.logger.Error("删除节假日失败", zap.String("holiday_id", holidayID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ICS 导入 ──────────────────────

// ImportICS 从 iCalendar 内容批量导入节假日（全天事件）
// 已存在的同名同日期条目跳过，保证重复导入幂等
func (s *holidayService) ImportICS(ctx context.Context, calendarID string, req *dto.ImportICSRequest, callerID string) (*dto.ImportICSResponse, error) {
	cal, err := s.repo.Holiday.GetCalendarByID(ctx, calendarID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHolidayCalendarNotFound
		}
		return nil, err
	}

	content := req.Content
	if content == "" {
		if req.URL == "" {
			return nil, ErrICSEmptyRequest
		}
		content, err = fetchICSContent(req.URL)
		if err != nil {
			return nil, err
		}
	}

	parsed, err := parseHolidayICS(content)
	if err != nil {
		return nil, err
	}

	// 去重：同日期同名条目不重复导入
	existing := make(map[string]bool, len(cal.Holidays))
	for _, h := range cal.Holidays {
		existing[h.Date.Format(holidayDateLayout)+"|"+h.Name] = true
	}

	toAdd := make([]model.Holiday, 0, len(parsed))
	skipped := 0
	for _, p := range parsed {
		key := p.Date.Format(holidayDateLayout) + "|" + p.Name
		if existing[key] {
			skipped++
			continue
		}
		h := model.Holiday{
			CalendarID:  calendarID,
			Name:        p.Name,
			Date:        p.Date,
			EndDate:     p.EndDate,
			IsRecurring: p.Recurring,
		}
		h.CreatedBy = &callerID
		h.UpdatedBy = &callerID
		toAdd = append(toAdd, h)
	}

	if err := s.repo.Holiday.AddHolidays(ctx, toAdd); err != nil {
		s.logger.Error("批量写入节假日失败", zap.String("calendar_id", calendarID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 导入完成",
		zap.String("calendar_id", calendarID),
		zap.Int("imported", len(toAdd)),
		zap.Int("skipped", skipped),
	)

	return &dto.ImportICSResponse{Imported: len(toAdd), Skipped: skipped}, nil
}

// ── 内部辅助方法 ──

func toHolidayResponse(h *model.Holiday) *dto.HolidayResponse {
	var endDate *string
	if h.EndDate != nil {
		formatted := h.EndDate.Format(holidayDateLayout)
		endDate = &formatted
	}
	return &dto.HolidayResponse{
		ID:          h.HolidayID,
		Name:        h.Name,
		Date:        h.Date.Format(holidayDateLayout),
		EndDate:     endDate,
		IsRecurring: h.IsRecurring,
	}
}

func toCalendarResponse(cal *model.HolidayCalendar) *dto.HolidayCalendarResponse {
	holidays := make([]dto.HolidayResponse, 0, len(cal.Holidays))
	for i := range cal.Holidays {
		holidays = append(holidays, *toHolidayResponse(&cal.Holidays[i]))
	}
	return &dto.HolidayCalendarResponse{
		ID:          cal.CalendarID,
		Name:        cal.Name,
		Description: cal.Description,
		Holidays:    holidays,
		CreatedAt:   cal.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   cal.UpdatedAt.Format(time.RFC3339),
	}
}
