package database

import (
	"github.com/weiwangfds/dsnworks/internal/logger"
	"gorm.io/gorm"
)

// MigrateWorksTable 迁移works表并创建查询索引
func MigrateWorksTable(db *gorm.DB) error {
	if err := db.AutoMigrate(&Work{}); err != nil {
		return err
	}

	indexes := []string{
		// 公开目录：按状态过滤后按上传时间倒序
		"CREATE INDEX IF NOT EXISTS idx_works_status_upload_date ON works(status, upload_date DESC)",
		// 仪表盘：按用户取全部作品，最新优先
		"CREATE INDEX IF NOT EXISTS idx_works_user_created ON works(user_id, created_at DESC)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Errorf("create index failed: %s, error: %v", stmt, err)
			return err
		}
	}

	logger.Info("works table migrated")
	return nil
}
