// Package response 统一HTTP响应格式
// 成功时直接返回业务载荷，失败时统一返回 {"error": message}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/i18n"
	"github.com/weiwangfds/dsnworks/internal/logger"
)

// LangKey gin上下文中保存请求语言的键
const LangKey = "lang"

// ErrorBody 错误响应体
type ErrorBody struct {
	Error string `json:"error" example:"Travail non trouvé"`
}

// PageData 分页响应体
type PageData struct {
	Works      interface{} `json:"works"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
}

// Success 200响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, totalPages int) {
	c.JSON(http.StatusOK, PageData{
		Works:      list,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	})
}

// Error 把错误转换为状态码和错误体
// 非AppError一律按500处理，细节只进日志
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err,
		}).Error("unhandled error")
		InternalServerError(c, apperrors.GetErrorMessage(apperrors.ErrInternalServer))
		return
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"code":    appErr.Code,
			"details": appErr.Details,
		}).Error(appErr.Message)
	}
	abort(c, status, appErr.LocalizedMessage(Lang(c)))
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	abort(c, http.StatusInternalServerError, message)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message})
}

// Lang 返回当前请求的语言
func Lang(c *gin.Context) string {
	if v, ok := c.Get(LangKey); ok {
		if lang, ok := v.(string); ok && lang != "" {
			return lang
		}
	}
	return i18n.GetInstance().Resolve(c.GetHeader("Accept-Language"))
}
