package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Status 作品状态，只允许三个取值
type Status string

const (
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusPublished   Status = "published"
)

// ParseStatus 解析状态字符串
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid work status %q", s)
	}
	return st, nil
}

// Valid 是否为合法状态
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusPublished:
		return true
	}
	return false
}

// Value 实现driver.Valuer，拒绝写入非法状态
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid work status %q", string(s))
	}
	return string(s), nil
}

// Scan 实现sql.Scanner
func (s *Status) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", value)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// UnmarshalText 解析JSON中的状态字段
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Work 提交的作品
// upload_date 只在创建时写入，用于目录排序；updated_at 在每次写操作时刷新
type Work struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"not null;size:255" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Author         string    `gorm:"not null;size:255" json:"author"`
	Module         string    `gorm:"not null;size:255;index" json:"module"`
	Teacher        string    `gorm:"not null;size:255;index" json:"teacher"`
	FileURL        string    `gorm:"not null;size:1000" json:"file_url"`
	FileName       string    `gorm:"not null;size:255" json:"file_name"`
	FileSize       int64     `gorm:"not null" json:"file_size"`
	StorageKey     string    `gorm:"size:500" json:"-"` // 存储中的对象键，用于生成下载链接
	UploadDate     time.Time `gorm:"not null" json:"upload_date"`
	UserID         string    `gorm:"not null;size:255;index" json:"user_id"`
	ViewsCount     int64     `gorm:"not null" json:"views_count"`
	DownloadsCount int64     `gorm:"not null" json:"downloads_count"`
	Status         Status    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Work) TableName() string {
	return "works"
}
