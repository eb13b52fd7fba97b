package handlers

import (
	"xamu/internal/services"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvitationHandler 邀请接受处理器
// 面向未登录的受邀校长，路径免租户解析
type InvitationHandler struct {
	service *services.InvitationService
}

func NewInvitationHandler() *InvitationHandler {
	return &InvitationHandler{
		service: services.NewInvitationService(),
	}
}

// GetByToken 查看邀请详情
// 受邀人打开邀请链接时先展示学校信息
func (h *InvitationHandler) GetByToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "缺少邀请令牌")
		return
	}

	invitation, err := h.service.GetByToken(token)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	// 不回传令牌之外的敏感信息
	response.Success(c, gin.H{
		"tenant_name": invitation.Tenant.Name,
		"tenant_code": invitation.Tenant.Code,
		"email":       invitation.Email,
		"expires_at":  invitation.ExpiresAt,
	})
}

// AcceptInvitationRequest 接受邀请请求
type AcceptInvitationRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Accept 接受邀请并完成校长注册
func (h *InvitationHandler) Accept(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "缺少邀请令牌")
		return
	}

	var req AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.service.AcceptInvitation(token, req.Name, req.Password)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "注册成功", user)
}
