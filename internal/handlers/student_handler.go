package handlers

import (
	"errors"
	"strconv"
	"time"

	"xamu/internal/services"
	"xamu/pkg/pagination"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StudentHandler 学生与家庭关系处理器
type StudentHandler struct {
	service *services.AcademicService
}

func NewStudentHandler() *StudentHandler {
	return &StudentHandler{
		service: services.NewAcademicService(),
	}
}

// StudentRequest 学生请求
type StudentRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"` // 格式: 2006-01-02
	ClassID   *uint  `json:"class_id"`
}

func (r *StudentRequest) parseBirthDate() (*time.Time, error) {
	if r.BirthDate == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", r.BirthDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create 创建学生
func (h *StudentHandler) Create(c *gin.Context) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	birthDate, err := req.parseBirthDate()
	if err != nil {
		response.BadRequest(c, "出生日期格式错误")
		return
	}

	student, err := h.service.CreateStudent(c.Request.Context(), req.FirstName, req.LastName, birthDate, req.ClassID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, student)
}

// List 学生列表
func (h *StudentHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	var classID *uint
	if raw := c.Query("class_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "班级ID格式错误")
			return
		}
		v := uint(id)
		classID = &v
	}

	students, total, err := h.service.ListStudents(c.Request.Context(), classID, c.Query("keyword"), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, students, pageInfo)
}

// Get 获取学生
func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学生不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, student)
}

// Update 更新学生
func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	birthDate, err := req.parseBirthDate()
	if err != nil {
		response.BadRequest(c, "出生日期格式错误")
		return
	}

	student, err := h.service.UpdateStudent(c.Request.Context(), id, req.FirstName, req.LastName, birthDate, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学生不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, student)
}

// Delete 删除学生
func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteStudent(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "学生不存在")
			return
		}
		response.ServerError(c, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 家庭关系 ==========

// FamilyRelationRequest 家庭关系请求
type FamilyRelationRequest struct {
	ParentID uint   `json:"parent_id" binding:"required"`
	Relation string `json:"relation"`
}

// CreateFamilyRelation 关联学生和家长
func (h *StudentHandler) CreateFamilyRelation(c *gin.Context) {
	studentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req FamilyRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	relation, err := h.service.CreateFamilyRelation(c.Request.Context(), studentID, req.ParentID, req.Relation)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, relation)
}

// ListFamily 学生的家庭关系列表
func (h *StudentHandler) ListFamily(c *gin.Context) {
	studentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	relations, err := h.service.ListStudentFamily(c.Request.Context(), studentID)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, relations)
}

// DeleteFamilyRelation 解除家庭关系
func (h *StudentHandler) DeleteFamilyRelation(c *gin.Context) {
	relationID, err := strconv.ParseUint(c.Param("relation_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.service.DeleteFamilyRelation(c.Request.Context(), uint(relationID)); err != nil {
		response.ServerError(c, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
