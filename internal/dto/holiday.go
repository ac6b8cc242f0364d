package dto

// ── 节假日日历模块 DTO ──

// CreateHolidayCalendarRequest 创建节假日日历请求
type CreateHolidayCalendarRequest struct {
	Name        string `json:"name"        binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// UpdateHolidayCalendarRequest 更新节假日日历请求
type UpdateHolidayCalendarRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// CreateHolidayRequest 添加节假日条目请求
type CreateHolidayRequest struct {
	Name        string  `json:"name"         binding:"required,min=1,max=100"`
	Date        string  `json:"date"         binding:"required"` // "2025-01-01"
	EndDate     *string `json:"end_date"     binding:"omitempty"`
	IsRecurring bool    `json:"is_recurring"`
}

// ImportICSRequest 从 ICS 导入节假日请求（URL 与 content 二选一）
type ImportICSRequest struct {
	URL     string `json:"url"     binding:"omitempty,url"`
	Content string `json:"content" binding:"omitempty"`
}

// ImportICSResponse ICS 导入结果
type ImportICSResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// HolidayResponse 节假日条目响应
type HolidayResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	EndDate     *string `json:"end_date,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
}

// HolidayCalendarResponse 节假日日历响应
type HolidayCalendarResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Holidays    []HolidayResponse `json:"holidays,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}
