package main

import (
	"fmt"

	"xamu/internal/database"
	"xamu/internal/models"
	"xamu/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	if err := createPlatformAdmin(db); err != nil {
		return fmt.Errorf("创建平台管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createPlatformAdmin 创建平台管理员
// 平台管理员不归属任何学校，只能使用管理面
func createPlatformAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("is_platform_admin = ?", true).Count(&count)
	if count > 0 {
		logger.GetLogger().Info("平台管理员已存在，跳过创建")
		return nil
	}

	user := &models.User{
		Email:           "admin@example.com",
		Name:            "平台管理员",
		Status:          models.UserStatusActive,
		IsPlatformAdmin: true,
	}

	if err := user.SetPassword("Admin@123"); err != nil {
		return fmt.Errorf("设置密码失败: %v", err)
	}

	if err := db.Create(user).Error; err != nil {
		return err
	}

	logger.GetLogger().Infof("平台管理员创建成功 - 邮箱: admin@example.com, 密码: Admin@123")
	return nil
}
