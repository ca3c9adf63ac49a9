// Package config 负责加载应用配置
// 配置来源优先级: 环境变量 > 配置文件(config.yaml) > 默认值，启动时会先尝试加载 .env 文件
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Counters CountersConfig `mapstructure:"counters"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // gin模式: debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	// AllowOrigins CORS允许的来源
	AllowOrigins []string `mapstructure:"allow_origins"`
	// Language 默认响应语言 (fr, en)
	Language string `mapstructure:"language"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres 或 sqlite
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// PostgresDSN 生成Postgres连接串，已显式配置DSN时直接返回
func (c *DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	// Provider 存储提供商: minio, aliyun, tencent, qiniu
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Folder 作品文件的命名空间目录
	Folder string `mapstructure:"folder"`
	// PublicBaseURL 公开访问的基础地址，为空时由提供商推导
	PublicBaseURL string `mapstructure:"public_base_url"`
	// URLExpiry 下载链接有效期(秒)
	URLExpiry int `mapstructure:"url_expiry"`
}

// AuthConfig 身份令牌校验配置
type AuthConfig struct {
	// JWTSecret HS256共享密钥
	JWTSecret string `mapstructure:"jwt_secret"`
	// PublicKeyPEM 身份提供商的RS256公钥
	PublicKeyPEM string `mapstructure:"public_key_pem"`
	Issuer       string `mapstructure:"issuer"`
}

// UploadConfig 上传文件策略
type UploadConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// CountersConfig 浏览/下载计数配置
type CountersConfig struct {
	// Atomic 为false时直接走读-改-写降级路径
	Atomic bool `mapstructure:"atomic"`
}

// EventsConfig Kafka事件配置，Brokers为空时不发布事件
type EventsConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	// PublishTimeoutMS 单次发布在请求路径上最多等待的毫秒数
	PublishTimeoutMS int `mapstructure:"publish_timeout_ms"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultAllowedTypes 允许上传的文档MIME类型
var DefaultAllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// Default 返回默认配置，测试中直接使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.language", "fr")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/dsnworks.db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.provider", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "dsn-works")
	v.SetDefault("storage.folder", "dsn-works")
	v.SetDefault("storage.url_expiry", 3600)

	v.SetDefault("upload.max_file_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", DefaultAllowedTypes)

	v.SetDefault("counters.atomic", true)

	v.SetDefault("events.topic", "dsn-works.events")
	v.SetDefault("events.publish_timeout_ms", 2000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/app.log")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 加载配置
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DSN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 托管服务常用的环境变量名
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	_ = v.BindEnv("auth.public_key_pem", "AUTH_PUBLIC_KEY")
	_ = v.BindEnv("events.brokers", "KAFKA_BROKERS")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" && cfg.Auth.PublicKeyPEM == "" {
		log.Println("Warning: no auth key configured, every authenticated route will answer 401")
	}

	return cfg, nil
}
