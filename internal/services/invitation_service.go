package services

import (
	"errors"
	"fmt"
	"time"

	"xamu/internal/database"
	"xamu/internal/models"
	"xamu/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InvitationService 学校邀请服务
// 平台管理员创建学校后向校长邮箱发一次性邀请，
// 校长凭令牌注册成为该校的第一个用户
type InvitationService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewInvitationService 创建邀请服务
func NewInvitationService() *InvitationService {
	return &InvitationService{
		db:  database.GetDB(),
		log: logger.GetLogger(),
	}
}

// NewInvitationServiceWith 用指定数据库创建邀请服务
func NewInvitationServiceWith(db *gorm.DB) *InvitationService {
	return &InvitationService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// CreateInvitation 为学校创建邀请
// 每个学校只有一条邀请记录；已有未消费的邀请时重新生成令牌并续期
func (s *InvitationService) CreateInvitation(tenantID uint, email string, createdByID uint) (*models.TenantInvitation, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("学校不存在")
		}
		return nil, err
	}

	var existing models.TenantInvitation
	err := s.db.Where("tenant_id = ?", tenantID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Used {
			return nil, fmt.Errorf("该学校的邀请已被使用")
		}
		// 重新生成令牌并续期
		existing.Email = email
		existing.Token = uuid.NewString()
		existing.ExpiresAt = time.Now().Add(models.InvitationDefaultTTL)
		existing.CreatedByID = &createdByID
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"email":     email,
		}).Info("重新生成学校邀请")
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		invitation := &models.TenantInvitation{
			TenantID:    tenantID,
			Email:       email,
			Token:       uuid.NewString(),
			ExpiresAt:   time.Now().Add(models.InvitationDefaultTTL),
			CreatedByID: &createdByID,
		}
		if err := s.db.Create(invitation).Error; err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"email":     email,
		}).Info("创建学校邀请")
		return invitation, nil

	default:
		return nil, err
	}
}

// GetByToken 根据令牌获取有效邀请
func (s *InvitationService) GetByToken(token string) (*models.TenantInvitation, error) {
	var invitation models.TenantInvitation
	err := s.db.Where("token = ?", token).Preload("Tenant").First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("邀请不存在")
		}
		return nil, err
	}
	if !invitation.IsValid() {
		return nil, fmt.Errorf("邀请已失效")
	}
	return &invitation, nil
}

// AcceptInvitation 接受邀请
// 在一个事务里创建校长账号并消费邀请；
// 消费用条件更新落库，并发下只有一个请求能成功
func (s *InvitationService) AcceptInvitation(token, name, password string) (*models.User, error) {
	var user *models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var invitation models.TenantInvitation
		err := tx.Where("token = ?", token).First(&invitation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("邀请不存在")
			}
			return err
		}
		if !invitation.IsValid() {
			return fmt.Errorf("邀请已失效")
		}

		var tenant models.Tenant
		if err := tx.First(&tenant, invitation.TenantID).Error; err != nil {
			return err
		}
		if !tenant.IsActive() {
			return fmt.Errorf("学校已停用")
		}

		var count int64
		tx.Model(&models.User{}).Where("email = ?", invitation.Email).Count(&count)
		if count > 0 {
			return fmt.Errorf("该邮箱已注册")
		}

		user = &models.User{
			Email:    invitation.Email,
			Name:     name,
			Status:   models.UserStatusActive,
			TenantID: &invitation.TenantID,
			Role:     models.RolePrincipal,
		}
		if err := user.SetPassword(password); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		// 消费邀请，只更新消费相关字段；
		// used=false 条件保证令牌只被消费一次
		invitation.MarkUsed(user.ID)
		result := tx.Model(&models.TenantInvitation{}).
			Where("id = ? AND used = ?", invitation.ID, false).
			Select("used", "used_at", "user_created_id").
			Updates(map[string]interface{}{
				"used":            true,
				"used_at":         invitation.UsedAt,
				"user_created_id": invitation.UserCreatedID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("邀请已失效")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"tenant_id": *user.TenantID,
	}).Info("校长接受邀请完成注册")

	return user, nil
}

// GetTenantInvitation 获取学校的邀请记录
func (s *InvitationService) GetTenantInvitation(tenantID uint) (*models.TenantInvitation, error) {
	var invitation models.TenantInvitation
	err := s.db.Where("tenant_id = ?", tenantID).
		Preload("UserCreated").
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("邀请不存在")
		}
		return nil, err
	}
	return &invitation, nil
}

// CleanupExpiredInvitations 删除过期且未消费的邀请
func (s *InvitationService) CleanupExpiredInvitations() error {
	result := s.db.Where("used = ? AND expires_at < ?", false, time.Now()).
		Delete(&models.TenantInvitation{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.log.Infof("清理过期邀请 %d 条", result.RowsAffected)
	}
	return nil
}
