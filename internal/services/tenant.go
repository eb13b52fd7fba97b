package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"xamu/internal/database"
	"xamu/internal/models"
	"xamu/pkg/cache"
	"xamu/pkg/config"
	"xamu/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrTenantNotFound 代码不存在或租户已停用
var ErrTenantNotFound = errors.New("租户不存在或已停用")

// 缓存中的负向哨兵值：代码确定无效，短期内不再查库
const tenantCacheMiss = "__miss__"

// TenantService 租户注册表
// 按代码解析租户走两级查找：先缓存（含负向哨兵），再数据库；
// 任何租户写操作都同步失效对应缓存键
type TenantService struct {
	db    *gorm.DB
	cache cache.Cache
	log   *logrus.Logger

	cacheTTL         time.Duration
	negativeCacheTTL time.Duration
}

// TenantStats 租户统计信息
type TenantStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// NewTenantService 创建租户服务
func NewTenantService() *TenantService {
	cfg := config.GetConfig()
	return &TenantService{
		db:               database.GetDB(),
		cache:            database.GetCache(),
		log:              logger.GetLogger(),
		cacheTTL:         cfg.Tenant.CacheTTL,
		negativeCacheTTL: cfg.Tenant.NegativeCacheTTL,
	}
}

// NewTenantServiceWith 用指定依赖创建租户服务
func NewTenantServiceWith(db *gorm.DB, c cache.Cache, cacheTTL, negativeTTL time.Duration) *TenantService {
	return &TenantService{
		db:               db,
		cache:            c,
		log:              logger.GetLogger(),
		cacheTTL:         cacheTTL,
		negativeCacheTTL: negativeTTL,
	}
}

func tenantCacheKey(code string) string {
	return "tenant:code:" + code
}

// GetByCode 按代码解析激活的租户
// 命中正向缓存直接返回；命中负向哨兵直接判不存在；
// 都未命中时查库，并把结果（或哨兵）写回缓存
func (s *TenantService) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	if !models.IsValidTenantCode(code) {
		return nil, ErrTenantNotFound
	}

	key := tenantCacheKey(code)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		if cached == tenantCacheMiss {
			return nil, ErrTenantNotFound
		}
		var tenant models.Tenant
		if err := json.Unmarshal([]byte(cached), &tenant); err == nil {
			return &tenant, nil
		}
		// 缓存内容损坏时当作未命中，走数据库
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Where("code = ? AND status = ?", code, models.TenantStatusActive).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 负向缓存：短TTL，避免无效代码反复打库
			if cacheErr := s.cache.Set(ctx, key, tenantCacheMiss, s.negativeCacheTTL); cacheErr != nil {
				s.log.Warnf("写入租户负向缓存失败: %v", cacheErr)
			}
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	if data, err := json.Marshal(&tenant); err == nil {
		if cacheErr := s.cache.Set(ctx, key, string(data), s.cacheTTL); cacheErr != nil {
			s.log.Warnf("写入租户缓存失败: %v", cacheErr)
		}
	}

	return &tenant, nil
}

// Invalidate 同步失效租户缓存
// 每次租户写操作后立即调用，正向和负向条目一并清除
func (s *TenantService) Invalidate(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, tenantCacheKey(code)); err != nil {
		s.log.Warnf("失效租户缓存失败 code=%s: %v", code, err)
	}
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *TenantService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.Model(&models.Tenant{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR code LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&tenants).Error
	if err != nil {
		return nil, 0, err
	}

	// 统计每个学校的用户数量
	for i := range tenants {
		var userCount int64
		s.db.Model(&models.User{}).Where("tenant_id = ?", tenants[i].ID).Count(&userCount)
		tenants[i].UserCount = int(userCount)
	}

	return tenants, total, nil
}

// Create 创建租户
func (s *TenantService) Create(ctx context.Context, name, code string) (*models.Tenant, error) {
	if err := s.ValidateCreateParams(name, code); err != nil {
		return nil, err
	}

	// 检查代码是否重复
	var count int64
	s.db.Model(&models.Tenant{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	tenant := &models.Tenant{
		Name:   name,
		Code:   code,
		Status: models.TenantStatusActive,
	}

	if err := s.db.Create(tenant).Error; err != nil {
		return nil, err
	}

	// 创建也要失效：代码可能还挂着负向哨兵
	s.Invalidate(ctx, code)

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"code":      tenant.Code,
	}).Info("创建学校")

	return tenant, nil
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, id).Error
	return &tenant, err
}

// Update 更新租户信息
// 代码不可修改，修改会使所有已发放的URL和缓存键失配
func (s *TenantService) Update(ctx context.Context, id uint, name, address, phone, email string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		if !s.ValidateName(name) {
			return nil, fmt.Errorf("学校名称长度必须在2-200个字符之间")
		}
		tenant.Name = name
	}
	tenant.Address = address
	tenant.Phone = phone
	tenant.Email = email

	if err := s.db.Save(&tenant).Error; err != nil {
		return nil, err
	}

	s.Invalidate(ctx, tenant.Code)
	return &tenant, nil
}

// Activate 激活租户
func (s *TenantService) Activate(ctx context.Context, id uint) (*models.Tenant, error) {
	return s.setStatus(ctx, id, models.TenantStatusActive)
}

// Deactivate 停用租户
// 缓存同步失效后，数据面的下一个请求立即开始收到404
func (s *TenantService) Deactivate(ctx context.Context, id uint) (*models.Tenant, error) {
	return s.setStatus(ctx, id, models.TenantStatusInactive)
}

func (s *TenantService) setStatus(ctx context.Context, id uint, status string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		return nil, err
	}

	tenant.Status = status
	if err := s.db.Save(&tenant).Error; err != nil {
		return nil, err
	}

	s.Invalidate(ctx, tenant.Code)

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"code":      tenant.Code,
		"status":    status,
	}).Info("变更学校状态")

	return &tenant, nil
}

// Delete 删除租户
func (s *TenantService) Delete(ctx context.Context, id uint) error {
	var tenant models.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		return err
	}

	if err := s.db.Delete(&tenant).Error; err != nil {
		return err
	}

	s.Invalidate(ctx, tenant.Code)
	return nil
}

// GetStats 获取租户统计
func (s *TenantService) GetStats() (*TenantStats, error) {
	stats := &TenantStats{}

	s.db.Model(&models.Tenant{}).Count(&stats.Total)
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&stats.Active)
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusInactive).Count(&stats.Inactive)

	return stats, nil
}

// IsValidStatus 检查租户状态是否有效
func (s *TenantService) IsValidStatus(status string) bool {
	switch status {
	case models.TenantStatusActive, models.TenantStatusInactive:
		return true
	default:
		return false
	}
}

// ========== 验证相关方法 ==========

// ValidateName 校验学校名称长度
func (s *TenantService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 200
}

// ValidateCreateParams 校验创建参数
func (s *TenantService) ValidateCreateParams(name, code string) error {
	if !s.ValidateName(name) {
		return fmt.Errorf("学校名称长度必须在2-200个字符之间")
	}
	if !models.IsValidTenantCode(code) {
		return fmt.Errorf("学校代码长度必须在2-10个字符之间，且只能包含字母、数字和下划线")
	}
	return nil
}
