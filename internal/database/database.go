// Package database 作品表模型、连接初始化和迁移
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/weiwangfds/dsnworks/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteDriverName 带fold函数的SQLite驱动名
const SQLiteDriverName = "sqlite3_fold"

var registerSQLite sync.Once

// sqliteDriver 注册一次SQLite驱动，每个连接上提供fold(text)
// SQLite内置的LOWER只处理ASCII，fold按Unicode转小写，与Postgres的ILIKE保持一致
func sqliteDriver() string {
	registerSQLite.Do(func() {
		sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("fold", strings.ToLower, true)
			},
		})
	})
	return SQLiteDriverName
}

// Init 初始化数据库连接并迁移表结构
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "postgres":
		// 托管Postgres通常经过连接池代理，使用简单协议
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.PostgresDSN(),
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		}
		dialector = &sqlite.Dialector{DriverName: sqliteDriver(), DSN: dsn}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite只用一个连接，避免锁冲突；内存库也依赖这一点共享同一份数据
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := MigrateWorksTable(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return db, nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
