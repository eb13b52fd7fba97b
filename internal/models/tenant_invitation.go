package models

import (
	"time"
)

// TenantInvitation 租户邀请
// 平台管理员创建学校后，向校长邮箱发出一次性邀请；
// 邀请与学校一对一，消费后只允许更新 used/used_at/user_created 字段
type TenantInvitation struct {
	ID       uint `json:"id" gorm:"primarykey"`
	TenantID uint `json:"tenant_id" gorm:"not null;uniqueIndex"` // 一对一

	Email string `json:"email" gorm:"size:200;not null;index"` // 校长邮箱
	Token string `json:"token" gorm:"size:36;uniqueIndex;not null"`

	Used          bool       `json:"used" gorm:"default:false"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	UserCreatedID *uint      `json:"user_created_id,omitempty"` // 接受邀请的用户
	CreatedByID   *uint      `json:"created_by_id,omitempty"`   // 创建邀请的平台管理员

	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Tenant      Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	UserCreated *User  `json:"user_created,omitempty" gorm:"foreignKey:UserCreatedID"`
	CreatedBy   *User  `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName 指定表名
func (TenantInvitation) TableName() string {
	return "tenant_invitations"
}

// 邀请默认有效期
const InvitationDefaultTTL = 7 * 24 * time.Hour

// IsExpired 邀请是否已过期
func (i *TenantInvitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsValid 邀请是否可用：未消费且未过期
func (i *TenantInvitation) IsValid() bool {
	return !i.Used && !i.IsExpired()
}

// MarkUsed 标记邀请已消费并记录接受人
// used 是单向转换，只在这里发生
func (i *TenantInvitation) MarkUsed(userID uint) {
	now := time.Now()
	i.Used = true
	i.UsedAt = &now
	i.UserCreatedID = &userID
}
