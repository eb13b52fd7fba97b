package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"xamu/internal/models"
	"xamu/internal/services"
	"xamu/internal/tenantctx"
	"xamu/pkg/config"
	"xamu/pkg/jwt"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
)

// 记住上次访问学校的cookie
const tenantCookieName = "current_tenant"
const tenantCookieMaxAge = 30 * 24 * 3600

// 默认免租户解析的路径，配置中的 ExemptPaths 追加在后面
var defaultExemptPatterns = []string{
	`^/admin/`,
	`^/accounts/`,
	`^/static/`,
	`^/media/`,
	`^/favicon\.ico$`,
	`^/$`,        // 全局落地页
	`^/about/?$`, // 全局about页
	`^/health$`,
	`^/api/v1/auth/`,
	`^/api/v1/admin/`,
	`^/api/v1/invitations/`,
	`^/ws/`,
}

// URL首段的学校代码
var tenantPathRegexp = regexp.MustCompile(`^/([A-Za-z0-9_]+)(/|$)`)

// TenantMiddleware 租户解析中间件
// 从URL路径解析学校代码，校验访问权限，把学校绑定到请求context；
// context随请求结束销毁，不会泄漏到其他请求
type TenantMiddleware struct {
	tenantService *services.TenantService
	jwtManager    *jwt.JWTManager

	exemptPatterns []*regexp.Regexp
	loginPath      string
	adminPath      string
	homePath       string
}

// NewTenantMiddleware 创建租户解析中间件
func NewTenantMiddleware() *TenantMiddleware {
	return NewTenantMiddlewareWith(services.NewTenantService(), config.GetConfig())
}

// NewTenantMiddlewareWith 用指定依赖创建租户解析中间件
func NewTenantMiddlewareWith(tenantService *services.TenantService, cfg *config.Config) *TenantMiddleware {
	patterns := make([]*regexp.Regexp, 0, len(defaultExemptPatterns)+len(cfg.Tenant.ExemptPaths))
	for _, p := range defaultExemptPatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	for _, p := range cfg.Tenant.ExemptPaths {
		if compiled, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, compiled)
		}
	}

	return &TenantMiddleware{
		tenantService:  tenantService,
		jwtManager:     jwt.GetJWTManager(),
		exemptPatterns: patterns,
		loginPath:      cfg.Tenant.LoginPath,
		adminPath:      cfg.Tenant.AdminPath,
		homePath:       cfg.Tenant.HomePath,
	}
}

// Resolve 解析并绑定当前学校
func (m *TenantMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if m.isExempt(path) {
			c.Next()
			return
		}

		claims, authed := extractClaims(c, m.jwtManager)

		code, hasCode := extractTenantCode(path)
		if !hasCode {
			m.redirectWithoutCode(c, claims, authed)
			return
		}

		tenant, err := m.tenantService.GetByCode(c.Request.Context(), code)
		if err != nil {
			if errors.Is(err, services.ErrTenantNotFound) {
				// 代码无效或学校已停用，不暴露两者的区别
				response.NotFound(c, "页面不存在")
				c.Abort()
				return
			}
			response.ServerError(c, "学校解析失败")
			c.Abort()
			return
		}

		// 访问规则
		if !authed {
			c.Redirect(http.StatusFound, m.loginPath)
			c.Abort()
			return
		}
		if claims.IsPlatformAdmin {
			// 平台管理员不进入任何学校的数据面
			c.Redirect(http.StatusFound, m.adminPath)
			c.Abort()
			return
		}
		if claims.TenantID != tenant.ID {
			// 用户访问别的学校：送回自己学校的对应页面
			if claims.TenantCode != "" {
				c.Redirect(http.StatusFound, "/"+claims.TenantCode+"/")
			} else {
				c.Redirect(http.StatusFound, m.homePath)
			}
			c.Abort()
			return
		}

		m.bind(c, tenant)
		c.Next()
	}
}

// redirectWithoutCode 路径中没有学校代码时的兜底
// 已登录用户回自己学校，其余回全局首页
func (m *TenantMiddleware) redirectWithoutCode(c *gin.Context, claims *jwt.JWTClaims, authed bool) {
	if authed {
		if claims.IsPlatformAdmin {
			c.Redirect(http.StatusFound, m.adminPath)
			c.Abort()
			return
		}
		if claims.TenantCode != "" {
			c.Redirect(http.StatusFound, "/"+claims.TenantCode+"/")
			c.Abort()
			return
		}
	}

	// 未登录：试试cookie里记住的学校
	if code, err := c.Cookie(tenantCookieName); err == nil && models.IsValidTenantCode(code) {
		if _, lookupErr := m.tenantService.GetByCode(c.Request.Context(), code); lookupErr == nil {
			c.Redirect(http.StatusFound, "/"+code+"/")
			c.Abort()
			return
		}
	}

	c.Redirect(http.StatusFound, m.homePath)
	c.Abort()
}

// bind 把学校绑定到请求context并记录cookie
func (m *TenantMiddleware) bind(c *gin.Context, tenant *models.Tenant) {
	ctx := tenantctx.WithTenant(c.Request.Context(), tenant)
	c.Request = c.Request.WithContext(ctx)

	c.Set("tenant", tenant)
	c.Set("tenant_id", tenant.ID)
	c.Set("tenant_code", tenant.Code)

	c.SetCookie(tenantCookieName, tenant.Code, tenantCookieMaxAge, "/", "", false, true)
}

// isExempt 路径是否免租户解析
func (m *TenantMiddleware) isExempt(path string) bool {
	for _, pattern := range m.exemptPatterns {
		if pattern.MatchString(path) {
			return true
		}
	}
	return false
}

// extractTenantCode 从路径首段提取学校代码
func extractTenantCode(path string) (string, bool) {
	matches := tenantPathRegexp.FindStringSubmatch(path)
	if matches == nil {
		return "", false
	}
	return matches[1], true
}

// RequireTenant 守卫：确认请求context已绑定学校
// 挂在数据面路由组上，路由配置错漏时立即以404短路而不是静默跨租户
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := tenantctx.FromContext(c.Request.Context()); !ok {
			response.NotFound(c, "当前请求未绑定学校")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentTenant 从gin上下文取当前学校
func GetCurrentTenant(c *gin.Context) (*models.Tenant, bool) {
	return tenantctx.FromContext(c.Request.Context())
}
