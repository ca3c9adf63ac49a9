package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/dsnworks/internal/logger"
)

// TraceIDKey 请求追踪ID在上下文和响应头中的键
const TraceIDKey = "X-Request-ID"

// RequestLoggerConfig 详细请求日志配置
type RequestLoggerConfig struct {
	Enabled     bool
	SkipPaths   []string
	MaxBodySize int
	// IncludeBody 只记录JSON请求体，multipart上传从不记录
	IncludeBody     bool
	IncludeResponse bool
}

// DefaultRequestLoggerConfig 默认配置，gin为debug模式时启用
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:         gin.Mode() == gin.DebugMode,
		SkipPaths:       []string{"/health", "/metrics", "/favicon.ico"},
		MaxBodySize:     64 * 1024,
		IncludeBody:     true,
		IncludeResponse: true,
	}
}

// responseWriter 捕获响应体和状态码
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 为每个请求分配追踪ID，并在开启时记录请求和响应
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDKey)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDKey, traceID)

		if !cfg.Enabled || skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		var requestBody interface{}
		if cfg.IncludeBody && isJSON(c.ContentType()) {
			requestBody = readRequestBody(c, cfg.MaxBodySize)
		}

		c.Next()

		fields := logrus.Fields{
			"trace_id":    traceID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"status_code": writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"user_id":     UserID(c),
		}
		if requestBody != nil {
			fields["body"] = requestBody
		}
		if cfg.IncludeResponse && writer.body.Len() > 0 && writer.body.Len() <= cfg.MaxBodySize {
			fields["response_body"] = parseBody(writer.body.Bytes())
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch status := writer.Status(); {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// readRequestBody 读取请求体后重置，以便后续处理器可以读取
func readRequestBody(c *gin.Context, maxSize int) interface{} {
	if c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return "failed to read request body"
	}
	rest := c.Request.Body
	c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), rest), Closer: rest}

	if len(body) > maxSize {
		return "body truncated"
	}
	return parseBody(body)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func parseBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}
