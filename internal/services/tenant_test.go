package services

import (
	"context"
	"testing"
	"time"

	"xamu/internal/models"
	"xamu/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*TenantService, cache.Cache) {
	db := newServiceTestDB(t)
	c := cache.NewMemoryCache()
	return NewTenantServiceWith(db, c, time.Hour, 5*time.Minute), c
}

func TestGetByCodeHitsDatabaseThenCache(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	tenant, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, tenant.ID)
	assert.Equal(t, "第一中学", tenant.Name)

	// 直接删库，缓存条目仍然命中
	require.NoError(t, svc.db.Delete(&models.Tenant{}, created.ID).Error)

	tenant, err = svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, tenant.ID)
}

func TestGetByCodeInvalidCodeShape(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	for _, code := range []string{"", "a", "with space", "über", "toolongcode123"} {
		_, err := svc.GetByCode(ctx, code)
		assert.ErrorIs(t, err, ErrTenantNotFound, "code=%q", code)
	}
}

func TestGetByCodeInactiveNotResolved(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	tenant := &models.Tenant{Code: "etb001", Name: "第一中学", Status: models.TenantStatusInactive}
	require.NoError(t, svc.db.Create(tenant).Error)

	_, err := svc.GetByCode(ctx, "etb001")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestNegativeCacheShieldsDatabase(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	_, err := svc.GetByCode(ctx, "etb001")
	require.ErrorIs(t, err, ErrTenantNotFound)

	// 绕过服务层直接建库，负向哨兵还在，解析仍然失败
	tenant := &models.Tenant{Code: "etb001", Name: "第一中学", Status: models.TenantStatusActive}
	require.NoError(t, svc.db.Create(tenant).Error)

	_, err = svc.GetByCode(ctx, "etb001")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	// 失效后下一次解析走库
	svc.Invalidate(ctx, "etb001")
	got, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)
}

func TestCreateClearsNegativeSentinel(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	_, err := svc.GetByCode(ctx, "etb001")
	require.ErrorIs(t, err, ErrTenantNotFound)

	// 通过服务层创建会同步失效哨兵
	created, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	got, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestDeactivateTakesEffectImmediately(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	// 预热正向缓存
	_, err = svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)

	_, err = svc.Deactivate(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.GetByCode(ctx, "etb001")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	// 重新激活后恢复解析
	_, err = svc.Activate(ctx, created.ID)
	require.NoError(t, err)

	got, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestUpdateInvalidatesCacheAndKeepsCode(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	_, err = svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, "第一实验中学", "新地址", "", "")
	require.NoError(t, err)
	assert.Equal(t, "etb001", updated.Code)

	got, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, "第一实验中学", got.Name)
}

func TestCorruptCacheEntryFallsBackToDatabase(t *testing.T) {
	svc, c := newRegistry(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "tenant:code:etb001", "{broken json", time.Hour))

	got, err := svc.GetByCode(ctx, "etb001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateDuplicateCodeRejected(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "另一所学校", "etb001")
	assert.Error(t, err)
}

func TestValidateCreateParams(t *testing.T) {
	svc, _ := newRegistry(t)

	assert.NoError(t, svc.ValidateCreateParams("第一中学", "etb001"))
	assert.Error(t, svc.ValidateCreateParams("短", "etb001"))
	assert.Error(t, svc.ValidateCreateParams("第一中学", "bad code"))
	assert.Error(t, svc.ValidateCreateParams("第一中学", "x"))
}

func TestGetStats(t *testing.T) {
	svc, _ := newRegistry(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "第一中学", "etb001")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "第二中学", "etb002")
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, second.ID)
	require.NoError(t, err)

	stats, err := svc.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Inactive)
}
