package services

import (
	"context"
	"testing"

	"xamu/internal/models"
	"xamu/internal/tenantctx"
	"xamu/internal/tenantdb"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newServiceTestDB 服务层测试用的内存数据库，带租户隔离插件
func newServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(tenantdb.New()))
	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.TenantInvitation{},
		&models.User{},
		&models.Subject{},
		&models.SchoolClass{},
		&models.Student{},
		&models.FamilyRelation{},
		&models.Course{},
		&models.Absence{},
		&models.ImportSession{},
		&models.GeneratedAccount{},
	))
	return db
}

func newActiveTenant(t *testing.T, db *gorm.DB, code string) *models.Tenant {
	tenant := &models.Tenant{Code: code, Name: "学校" + code, Status: models.TenantStatusActive}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func tenantCtx(tenant *models.Tenant) context.Context {
	return tenantctx.WithTenant(context.Background(), tenant)
}

func newTenantUser(t *testing.T, db *gorm.DB, tenant *models.Tenant, email, role string) *models.User {
	user := &models.User{
		Email:    email,
		Name:     "用户" + email,
		Role:     role,
		Status:   models.UserStatusActive,
		TenantID: &tenant.ID,
	}
	require.NoError(t, user.SetPassword("Passw0rd!"))
	require.NoError(t, db.Create(user).Error)
	return user
}
