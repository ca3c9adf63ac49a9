// Package logger 封装全局logrus日志实例
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 全局日志实例
var Logger *logrus.Logger

// Config 日志配置
type Config struct {
	// Level 日志级别 (debug, info, warn, error)
	Level string
	// Format 日志格式 (json, text)
	Format string
	// Output 输出方式 (console, file, both)
	Output string
	// FilePath 日志文件路径
	FilePath string
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/app.log",
	}
}

// Init 初始化日志系统，config为nil时使用默认配置
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	out, err := openOutput(config)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	Logger = l
	bridgeGin()

	Logger.Info("logger initialized")
	return nil
}

// openOutput 按配置返回日志写入目标
func openOutput(config *Config) (io.Writer, error) {
	if config.Output != "file" && config.Output != "both" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if config.Output == "file" {
		return f, nil
	}
	return io.MultiWriter(os.Stdout, f), nil
}

// bridgeGin 让gin自身的输出走logrus
func bridgeGin() {
	w := &ginLogWriter{logger: Logger}
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
}

type ginLogWriter struct {
	logger *logrus.Logger
}

func (w *ginLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger 获取日志实例，未初始化时使用默认配置
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			logrus.Error("logger init failed, using standard logger")
			return logrus.StandardLogger()
		}
	}
	return Logger
}

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

func Info(args ...interface{}) { GetLogger().Info(args...) }

func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

func Warn(args ...interface{}) { GetLogger().Warn(args...) }

func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

func Error(args ...interface{}) { GetLogger().Error(args...) }

func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField 添加字段到日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
