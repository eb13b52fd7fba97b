package handlers

import (
	"errors"
	"strconv"
	"strings"

	"xamu/internal/services"
	"xamu/pkg/pagination"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTenantRequest 创建学校请求
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required,tenantcode"`
}

// UpdateTenantRequest 更新学校请求
type UpdateTenantRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// CreateInvitationRequest 创建邀请请求
type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TenantHandler 学校管理面处理器，仅平台管理员可用
type TenantHandler struct {
	service           *services.TenantService
	invitationService *services.InvitationService
}

func NewTenantHandler(service *services.TenantService) *TenantHandler {
	return &TenantHandler{
		service:           service,
		invitationService: services.NewInvitationService(),
	}
}

// Create 创建学校
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tenant, err := h.service.Create(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			response.BadRequest(c, "学校代码已存在")
			return
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "长度") {
			response.BadRequest(c, errMsg)
			return
		}
		response.ServerError(c, "创建失败")
		return
	}

	response.Success(c, tenant)
}

// GetByID 获取学校
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	tenant, err := h.service.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学校不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, tenant)
}

// GetAll 学校列表
func (h *TenantHandler) GetAll(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	status := c.Query("status")
	keyword := c.Query("keyword")

	tenants, total, err := h.service.GetWithFiltersAndPage(status, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, tenants, pageInfo)
}

// Update 更新学校信息
func (h *TenantHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tenant, err := h.service.Update(c.Request.Context(), uint(id), req.Name, req.Address, req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学校不存在")
			return
		}
		if strings.Contains(err.Error(), "长度") {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, "更新失败")
		return
	}

	response.Success(c, tenant)
}

// Activate 激活学校
func (h *TenantHandler) Activate(c *gin.Context) {
	h.setStatus(c, true)
}

// Deactivate 停用学校
// 注册表缓存同步失效，数据面立即开始返回404
func (h *TenantHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *TenantHandler) setStatus(c *gin.Context, active bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var tenant interface{}
	if active {
		tenant, err = h.service.Activate(c.Request.Context(), uint(id))
	} else {
		tenant, err = h.service.Deactivate(c.Request.Context(), uint(id))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学校不存在")
			return
		}
		response.ServerError(c, "操作失败")
		return
	}

	response.Success(c, tenant)
}

// Delete 删除学校
func (h *TenantHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.service.Delete(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学校不存在")
			return
		}
		response.ServerError(c, "删除失败")
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// GetStats 学校统计
func (h *TenantHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats()
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, stats)
}

// CreateInvitation 为学校创建校长邀请
func (h *TenantHandler) CreateInvitation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID := c.GetUint("user_id")
	invitation, err := h.invitationService.CreateInvitation(uint(id), req.Email, userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, invitation)
}

// GetInvitation 查看学校的邀请状态
func (h *TenantHandler) GetInvitation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	invitation, err := h.invitationService.GetTenantInvitation(uint(id))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, invitation)
}
