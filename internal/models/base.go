package models

import (
	"fmt"
	"time"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantOwned 租户归属实体的能力接口
// 只有实现该接口的模型才参与租户自动过滤和注入，
// 不依赖字段名探测
type TenantOwned interface {
	GetTenantID() uint
	SetTenantID(id uint)
}

// TenantModel 租户归属实体的基础模型
// 业务实体（班级、学生、课程、缺勤等）内嵌该结构，
// 记录创建后租户归属不可变更
type TenantModel struct {
	BaseModel
	TenantID uint `json:"tenant_id" gorm:"not null;index"`

	// 关联
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// GetTenantID 实现 TenantOwned
func (m *TenantModel) GetTenantID() uint {
	return m.TenantID
}

// SetTenantID 实现 TenantOwned
func (m *TenantModel) SetTenantID(id uint) {
	m.TenantID = id
}

// ValidationError 字段级校验错误
// 跨租户引用、租户归属变更等在保存前报出，指明出错字段
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建字段级校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
