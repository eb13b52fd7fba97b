package handlers

import (
	"strings"

	"xamu/internal/models"
	"xamu/internal/services"
	"xamu/pkg/jwt"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthHandler 认证处理器
type AuthHandler struct {
	userService   *services.UserService
	tenantService *services.TenantService
	jwtManager    *jwt.JWTManager
}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{
		userService:   services.NewUserService(),
		tenantService: services.NewTenantService(),
		jwtManager:    jwt.GetJWTManager(),
	}
}

// Login 邮箱密码登录
// 登录本身跨租户：签发的令牌里带用户所属学校
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	var tenantID uint
	var tenantCode string
	if user.TenantID != nil {
		tenantID = *user.TenantID
		if tenant, err := h.tenantService.GetByID(tenantID); err == nil {
			tenantCode = tenant.Code
		}
	}

	token, err := h.jwtManager.GenerateToken(user.ID, tenantID, tenantCode, user.Email, user.Role, user.IsPlatformAdmin)
	if err != nil {
		response.ServerError(c, "生成令牌失败")
		return
	}

	_ = h.userService.RecordLogin(user.ID)

	response.Success(c, LoginResponse{Token: token, User: user})
}

// Refresh 刷新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "认证头格式错误")
		return
	}

	token, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	response.Success(c, gin.H{"token": token})
}

// Profile 当前用户信息
func (h *AuthHandler) Profile(c *gin.Context) {
	userID := c.GetUint("user_id")
	user, err := h.userService.GetByID(userID)
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}
	response.Success(c, user)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword 修改密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID := c.GetUint("user_id")
	if err := h.userService.UpdatePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "密码修改成功", nil)
}
