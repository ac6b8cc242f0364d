package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"slatrack/backend/pkg/response"
)

// errBadRequest 处理器内部的参数校验失败标记
var errBadRequest = errors.New("参数校验失败")

// bindOptionalJSON 绑定可省略的 JSON 请求体
// 空请求体视为零值请求，非空但非法的请求体才报错
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// MustGetServiceName 从 Gin 上下文中安全提取调用方服务名。
// 如果认证中间件未正确注入 service_name，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetServiceName(c *gin.Context) (string, bool) {
	v, exists := c.Get("service_name")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
