package database

import (
	"xamu/internal/models"
	"xamu/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		// 平台层
		&models.Tenant{},
		&models.TenantInvitation{},
		&models.User{},
		// 教学组织
		&models.Subject{},
		&models.SchoolClass{},
		&models.Student{},
		&models.FamilyRelation{},
		// 排课与考勤
		&models.Course{},
		&models.Absence{},
		// CSV导入
		&models.ImportSession{},
		&models.GeneratedAccount{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	// 种子数据初始化在 main.go 中单独调用，避免循环依赖

	return nil
}
