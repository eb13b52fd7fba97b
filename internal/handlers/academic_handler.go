package handlers

import (
	"errors"
	"strconv"

	"xamu/internal/services"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AcademicHandler 科目与班级处理器，挂在租户数据面
type AcademicHandler struct {
	service *services.AcademicService
}

func NewAcademicHandler() *AcademicHandler {
	return &AcademicHandler{
		service: services.NewAcademicService(),
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// ========== 科目 ==========

// SubjectRequest 科目请求
type SubjectRequest struct {
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
	Color     string `json:"color"`
	Active    *bool  `json:"active"`
}

// CreateSubject 创建科目
func (h *AcademicHandler) CreateSubject(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	subject, err := h.service.CreateSubject(c.Request.Context(), req.Name, req.ShortCode, req.Color)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, subject)
}

// ListSubjects 科目列表
func (h *AcademicHandler) ListSubjects(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	subjects, err := h.service.ListSubjects(c.Request.Context(), activeOnly)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, subjects)
}

// GetSubject 获取科目
func (h *AcademicHandler) GetSubject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	subject, err := h.service.GetSubject(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "科目不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, subject)
}

// UpdateSubject 更新科目
func (h *AcademicHandler) UpdateSubject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	subject, err := h.service.UpdateSubject(c.Request.Context(), id, req.Name, req.ShortCode, req.Color, req.Active)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "科目不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, subject)
}

// DeleteSubject 删除科目
func (h *AcademicHandler) DeleteSubject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteSubject(c.Request.Context(), id); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 班级 ==========

// ClassRequest 班级请求
type ClassRequest struct {
	Name          string `json:"name"`
	Level         string `json:"level"`
	SchoolYear    string `json:"school_year"`
	HeadTeacherID *uint  `json:"head_teacher_id"`
	MaxSize       int    `json:"max_size"`
	Active        *bool  `json:"active"`
}

// CreateClass 创建班级
func (h *AcademicHandler) CreateClass(c *gin.Context) {
	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	class, err := h.service.CreateClass(c.Request.Context(), req.Name, req.Level, req.SchoolYear, req.HeadTeacherID, req.MaxSize)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, class)
}

// ListClasses 班级列表
func (h *AcademicHandler) ListClasses(c *gin.Context) {
	schoolYear := c.Query("school_year")
	activeOnly := c.Query("active") == "true"

	classes, err := h.service.ListClasses(c.Request.Context(), schoolYear, activeOnly)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, classes)
}

// GetClass 获取班级
func (h *AcademicHandler) GetClass(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	class, err := h.service.GetClass(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "班级不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, class)
}

// UpdateClass 更新班级
func (h *AcademicHandler) UpdateClass(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	class, err := h.service.UpdateClass(c.Request.Context(), id, req.Name, req.HeadTeacherID, req.MaxSize, req.Active)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "班级不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, class)
}

// DeleteClass 删除班级
func (h *AcademicHandler) DeleteClass(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteClass(c.Request.Context(), id); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
