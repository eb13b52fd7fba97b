package models

import "regexp"

// Tenant 租户模型 - 一个学校（établissement）对应一个隔离的租户
type Tenant struct {
	BaseModel
	Code    string `json:"code" gorm:"unique;not null;size:10;index"` // URL中使用的唯一代码，如 etb001
	Name    string `json:"name" gorm:"not null;size:200"`
	Address string `json:"address" gorm:"size:500"`
	Phone   string `json:"phone" gorm:"size:20"`
	Email   string `json:"email" gorm:"size:100"`
	Domain  *string `json:"domain,omitempty" gorm:"uniqueIndex;size:100"` // 绑定的站点域名，未绑定为空
	Status  string `json:"status" gorm:"default:'active';size:20"`

	UserCount int `json:"user_count" gorm:"-"` // 用户数量，不存储在数据库中
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// IsActive 租户是否激活
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// BaseURL 租户数据面的URL前缀
func (t *Tenant) BaseURL() string {
	return "/" + t.Code + "/"
}

// 代码只允许字母、数字和下划线
var tenantCodeRegexp = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// IsValidTenantCode 校验租户代码格式
func IsValidTenantCode(code string) bool {
	return len(code) >= 2 && len(code) <= 10 && tenantCodeRegexp.MatchString(code)
}
