package models

import (
	"time"

	"gorm.io/datatypes"
)

// ImportSession CSV导入会话
// 一次上传对应一条会话记录，逐行处理结果以JSON形式落库
type ImportSession struct {
	TenantModel
	Kind       string `json:"kind" gorm:"not null;size:20;index"` // personnel/classes/students
	Status     string `json:"status" gorm:"size:20;default:'pending';index"`
	SourceFile string `json:"source_file" gorm:"size:255"`

	Results datatypes.JSON `json:"results,omitempty"` // 统计与逐行错误

	CreatedByID *uint      `json:"created_by_id"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	// 关联
	CreatedBy *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName 指定表名
func (ImportSession) TableName() string {
	return "import_sessions"
}

// 导入类型常量
const (
	ImportKindPersonnel = "personnel"
	ImportKindClasses   = "classes"
	ImportKindStudents  = "students"
)

// 导入状态常量
const (
	ImportStatusPending = "pending"
	ImportStatusRunning = "running"
	ImportStatusDone    = "done"
	ImportStatusError   = "error"
)

// GeneratedAccount 导入过程中生成的账号
// 初始密码线下分发，只保存一次
type GeneratedAccount struct {
	TenantModel
	SessionID       uint   `json:"session_id" gorm:"not null;index"`
	UserID          uint   `json:"user_id" gorm:"not null;index"`
	InitialPassword string `json:"initial_password" gorm:"size:50"`

	// 关联
	Session ImportSession `json:"session,omitempty" gorm:"foreignKey:SessionID"`
	User    User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName 指定表名
func (GeneratedAccount) TableName() string {
	return "generated_accounts"
}
