package schema

import "time"

// LatestSchemaVersion 当前程序支持的 schema 版本；新增表/列时递增。
const LatestSchemaVersion = 1

// SchemaMeta 用于记录数据库 schema 版本，避免仅依赖 AutoMigrate 导致升级不可控。
// 表内仅维护单行（ID=1）。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// AllModels 返回需要迁移的全部表模型（顺序即建表顺序）
func AllModels() []any {
	return []any{
		&SchemaMeta{},
		&UserGameStats{},
		&SkillProgress{},
		&PointTransaction{},
		&TaskCompletion{},
	}
}
