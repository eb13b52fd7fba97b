package handlers

import (
	"errors"

	"xamu/internal/middleware"
	"xamu/internal/services"
	"xamu/pkg/pagination"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler 校内人员管理处理器
// 校长在自己学校内管理教师、教育顾问和家长账号
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler() *UserHandler {
	return &UserHandler{
		service: services.NewUserService(),
	}
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Role     string  `json:"role" binding:"required"`
	Phone    *string `json:"phone"`
}

// Create 在当前学校创建用户
func (h *UserHandler) Create(c *gin.Context) {
	tenant, ok := middleware.GetCurrentTenant(c)
	if !ok {
		response.ServerError(c, "当前请求未绑定学校")
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.service.Create(tenant.ID, req.Email, req.Password, req.Name, req.Role, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, user)
}

// List 当前学校的用户列表
func (h *UserHandler) List(c *gin.Context) {
	tenant, ok := middleware.GetCurrentTenant(c)
	if !ok {
		response.ServerError(c, "当前请求未绑定学校")
		return
	}

	pageParams := pagination.ParsePageParams(c)
	users, total, err := h.service.GetTenantUsersWithPage(tenant.ID, c.Query("role"), c.Query("keyword"), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, users, pageInfo)
}

// Get 获取用户
func (h *UserHandler) Get(c *gin.Context) {
	tenant, ok := middleware.GetCurrentTenant(c)
	if !ok {
		response.ServerError(c, "当前请求未绑定学校")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := h.service.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	// 用户不内嵌租户基础模型，归属检查在这里显式做
	if !user.BelongsToTenant(tenant.ID) {
		response.NotFound(c, "用户不存在")
		return
	}

	response.Success(c, user)
}

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

// Update 更新用户信息
func (h *UserHandler) Update(c *gin.Context) {
	tenant, ok := middleware.GetCurrentTenant(c)
	if !ok {
		response.ServerError(c, "当前请求未绑定学校")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	existing, err := h.service.GetByID(id)
	if err != nil || !existing.BelongsToTenant(tenant.ID) {
		response.NotFound(c, "用户不存在")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.service.Update(id, req.Name, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, user)
}

// Delete 删除用户
func (h *UserHandler) Delete(c *gin.Context) {
	tenant, ok := middleware.GetCurrentTenant(c)
	if !ok {
		response.ServerError(c, "当前请求未绑定学校")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	existing, err := h.service.GetByID(id)
	if err != nil || !existing.BelongsToTenant(tenant.ID) {
		response.NotFound(c, "用户不存在")
		return
	}

	if existing.ID == c.GetUint("user_id") {
		response.BadRequest(c, "不能删除自己")
		return
	}

	if err := h.service.Delete(id); err != nil {
		response.ServerError(c, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
