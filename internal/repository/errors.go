package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrConflict 乐观锁冲突：行在读取后被其他事务修改，整个工作单元需要重跑
	ErrConflict = errors.New("并发写入冲突")
	// ErrDuplicate 唯一键冲突
	ErrDuplicate = errors.New("记录已存在")
)

// IsBusy 判断是否为 SQLite 锁等待类的瞬时错误
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
