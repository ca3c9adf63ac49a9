package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/dsnworks/internal/i18n"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"github.com/weiwangfds/dsnworks/internal/response"
)

// AccessLog 访问日志，写入全局logrus实例
func AccessLog() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		entry := logger.WithFields(logrus.Fields{
			"status":    param.StatusCode,
			"latency":   param.Latency,
			"client_ip": param.ClientIP,
			"method":    param.Method,
			"path":      param.Path,
		})
		if param.ErrorMessage != "" {
			entry = entry.WithField("error", param.ErrorMessage)
		}
		entry.Info("HTTP Request")

		return ""
	})
}

// Lang 按Accept-Language确定响应语言
func Lang() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(response.LangKey, i18n.GetInstance().Resolve(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// Metrics 记录请求数量和耗时，路由取注册时的模板避免标签爆炸
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
