package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型
// 普通用户归属于一个学校；平台管理员不归属任何学校，
// 只能走管理面，永远不能进入租户数据面
type User struct {
	BaseModel
	Email        string  `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash string  `json:"-" gorm:"not null;size:255"`
	Name         string  `json:"name" gorm:"not null;size:255"`
	Phone        *string `json:"phone" gorm:"size:20"`
	Status       string  `json:"status" gorm:"default:'active';size:20"`

	// 多租户字段
	TenantID        *uint  `json:"tenant_id" gorm:"index"` // 所属学校，平台管理员为空
	Role            string `json:"role" gorm:"size:20"`    // 校内角色
	IsPlatformAdmin bool   `json:"is_platform_admin" gorm:"default:false"`

	LastLoginAt *time.Time `json:"last_login_at"`

	// 关联
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// 校内角色常量
const (
	RolePrincipal = "principal" // 校长（chef d'établissement）
	RoleTeacher   = "teacher"   // 教师
	RoleCPE       = "cpe"       // 教育顾问
	RoleParent    = "parent"    // 家长
)

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// BelongsToTenant 用户是否归属指定租户
func (u *User) BelongsToTenant(tenantID uint) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}
