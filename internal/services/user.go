package services

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"xamu/internal/database"
	"xamu/internal/models"

	"gorm.io/gorm"
)

// UserService 用户服务
// 用户不内嵌TenantModel：登录按邮箱跨租户查找，
// 租户内的用户查询在这里显式按tenant_id过滤
type UserService struct {
	db *gorm.DB
}

// UserStats 用户统计信息
type UserStats struct {
	Total          int64 `json:"total"`
	Active         int64 `json:"active"`
	PlatformAdmins int64 `json:"platform_admins"`
}

func NewUserService() *UserService {
	return &UserService{
		db: database.GetDB(),
	}
}

// NewUserServiceWith 用指定数据库创建用户服务
func NewUserServiceWith(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// ========== 基础CRUD方法 ==========

// Create 在指定学校创建用户
func (s *UserService) Create(tenantID uint, email, password, name, role string, phone *string) (*models.User, error) {
	if err := s.ValidateCreateParams(email, password, name); err != nil {
		return nil, err
	}
	if !s.IsValidRole(role) {
		return nil, fmt.Errorf("无效的角色: %s", role)
	}

	// 检查学校是否存在
	var tenantCount int64
	s.db.Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&tenantCount)
	if tenantCount == 0 {
		return nil, fmt.Errorf("学校不存在")
	}

	// 检查邮箱是否重复
	var emailCount int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&emailCount)
	if emailCount > 0 {
		return nil, fmt.Errorf("邮箱已存在")
	}

	user := &models.User{
		TenantID: &tenantID,
		Email:    email,
		Name:     name,
		Phone:    phone,
		Role:     role,
		Status:   models.UserStatusActive,
	}

	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	err := s.db.Create(user).Error
	return user, err
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	return &user, err
}

// GetByEmail 根据邮箱获取用户（跨租户，登录用）
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	return &user, err
}

// GetTenantUsersWithPage 获取学校内的用户列表（分页）
func (s *UserService) GetTenantUsersWithPage(tenantID uint, role, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.Model(&models.User{}).Where("tenant_id = ?", tenantID)

	if role != "" {
		query = query.Where("role = ?", role)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR email LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Update 更新用户基本信息
func (s *UserService) Update(id uint, name string, phone *string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		if !s.ValidateName(name) {
			return nil, fmt.Errorf("姓名长度必须在2-255个字符之间")
		}
		user.Name = name
	}
	if phone != nil {
		user.Phone = phone
	}

	err := s.db.Save(&user).Error
	return &user, err
}

// UpdatePassword 修改密码
func (s *UserService) UpdatePassword(id uint, oldPassword, newPassword string) error {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return err
	}

	if !user.CheckPassword(oldPassword) {
		return fmt.Errorf("原密码错误")
	}
	if !s.ValidatePassword(newPassword) {
		return fmt.Errorf("密码长度必须在8-50个字符之间")
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("密码加密失败: %v", err)
	}

	return s.db.Model(&user).Update("password_hash", user.PasswordHash).Error
}

// Delete 删除用户
func (s *UserService) Delete(id uint) error {
	return s.db.Delete(&models.User{}, id).Error
}

// RecordLogin 记录登录时间
func (s *UserService) RecordLogin(id uint) error {
	now := time.Now()
	return s.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", &now).Error
}

// Authenticate 验证邮箱和密码
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	user, err := s.GetByEmail(email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("邮箱或密码错误")
		}
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, fmt.Errorf("账号已停用")
	}
	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("邮箱或密码错误")
	}

	return user, nil
}

// GetStats 获取用户统计
func (s *UserService) GetStats() (*UserStats, error) {
	stats := &UserStats{}

	s.db.Model(&models.User{}).Count(&stats.Total)
	s.db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.Active)
	s.db.Model(&models.User{}).Where("is_platform_admin = ?", true).Count(&stats.PlatformAdmins)

	return stats, nil
}

// IsValidRole 检查校内角色是否有效
func (s *UserService) IsValidRole(role string) bool {
	switch role {
	case models.RolePrincipal, models.RoleTeacher, models.RoleCPE, models.RoleParent:
		return true
	default:
		return false
	}
}

// ========== 验证相关方法 ==========

// ValidateEmail 校验邮箱格式
func (s *UserService) ValidateEmail(email string) bool {
	if len(email) < 3 || len(email) > 100 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// ValidatePassword 校验密码长度
func (s *UserService) ValidatePassword(password string) bool {
	return len(password) >= 8 && len(password) <= 50
}

// ValidateName 校验姓名长度
func (s *UserService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 255
}

// ValidateCreateParams 校验创建参数
func (s *UserService) ValidateCreateParams(email, password, name string) error {
	if !s.ValidateEmail(email) {
		return fmt.Errorf("邮箱格式无效")
	}
	if !s.ValidatePassword(password) {
		return fmt.Errorf("密码长度必须在8-50个字符之间")
	}
	if !s.ValidateName(name) {
		return fmt.Errorf("姓名长度必须在2-255个字符之间")
	}
	return nil
}
