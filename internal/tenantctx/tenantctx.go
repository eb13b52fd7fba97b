package tenantctx

import (
	"context"

	"xamu/internal/models"
)

// 当前租户通过 context.Context 逐请求传递，而不是进程级共享变量：
// 并发请求各自持有独立的context树，天然互不可见

// contextKey 私有类型，避免与其他context键冲突
type contextKey struct{}

// WithTenant 将租户绑定到context，返回派生context
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, tenant)
}

// FromContext 从context获取当前租户
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	tenant, ok := ctx.Value(contextKey{}).(*models.Tenant)
	if !ok || tenant == nil {
		return nil, false
	}
	return tenant, true
}

// IDFromContext 从context获取当前租户ID
func IDFromContext(ctx context.Context) (uint, bool) {
	tenant, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return tenant.ID, true
}

// MustFromContext 从context获取当前租户，不存在时panic
// 仅用于租户中间件之后、必须有租户才可能执行到的代码
func MustFromContext(ctx context.Context) *models.Tenant {
	tenant, ok := FromContext(ctx)
	if !ok {
		panic("tenantctx: context中没有租户")
	}
	return tenant
}

// RunWithTenant 在指定租户下执行fn，适用于后台任务和定时任务
// fn内部通过派生context访问租户；fn返回（包括panic上抛）后，
// 调用方原context不受影响，外层租户（如有）自动恢复
func RunWithTenant(ctx context.Context, tenant *models.Tenant, fn func(ctx context.Context) error) error {
	return fn(WithTenant(ctx, tenant))
}
