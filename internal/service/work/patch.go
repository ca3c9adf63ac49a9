package work

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
)

// 可由所有者修改的列；模块和教师不重新校验目录
var patchableString = map[string]bool{
	"title":       true,
	"description": true,
	"author":      true,
	"module":      true,
	"teacher":     true,
	"file_url":    true,
	"file_name":   true,
}

// 永远不从补丁中读取的列
var protectedColumns = map[string]bool{
	"id":              true,
	"user_id":         true,
	"views_count":     true,
	"downloads_count": true,
	"status":          true,
	"upload_date":     true,
	"created_at":      true,
	"updated_at":      true,
}

// sanitizePatch 过滤受保护列，拒绝未知列和类型错误的值
func sanitizePatch(patch map[string]interface{}) (map[string]interface{}, error) {
	updates := make(map[string]interface{}, len(patch)+1)
	for key, value := range patch {
		switch {
		case protectedColumns[key]:
			continue
		case patchableString[key]:
			str, ok := value.(string)
			if !ok {
				return nil, patchError("%s must be a string", key)
			}
			updates[key] = str
		case key == "file_size":
			size, err := toInt64(value)
			if err != nil {
				return nil, patchError("file_size: %v", err)
			}
			updates[key] = size
		default:
			return nil, patchError("unknown field %s", key)
		}
	}
	return updates, nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || v < 0 {
			return 0, fmt.Errorf("not a non-negative integer: %v", v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("unexpected type %T", value)
	}
}

func patchError(format string, args ...interface{}) error {
	return apperrors.Validation(apperrors.ErrPatchInvalid).WithDetails(fmt.Sprintf(format, args...))
}
