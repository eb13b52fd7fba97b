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

// AttendanceHandler 排课与考勤处理器
type AttendanceHandler struct {
	service *services.AttendanceService
}

func NewAttendanceHandler() *AttendanceHandler {
	return &AttendanceHandler{
		service: services.NewAttendanceService(),
	}
}

func parseUintQuery(c *gin.Context, key string) (*uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.BadRequest(c, key+"格式错误")
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// ========== 排课 ==========

// CourseRequest 课程请求
type CourseRequest struct {
	SubjectID uint      `json:"subject_id" binding:"required"`
	ClassID   uint      `json:"class_id" binding:"required"`
	TeacherID uint      `json:"teacher_id" binding:"required"`
	StartsAt  time.Time `json:"starts_at" binding:"required"`
	EndsAt    time.Time `json:"ends_at" binding:"required"`
	Room      string    `json:"room"`
	Kind      string    `json:"kind"`
}

// CreateCourse 创建课程
func (h *AttendanceHandler) CreateCourse(c *gin.Context) {
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID := c.GetUint("user_id")
	course, err := h.service.CreateCourse(c.Request.Context(), req.SubjectID, req.ClassID, req.TeacherID,
		req.StartsAt, req.EndsAt, req.Room, req.Kind, &userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, course)
}

// ListCourses 课程列表
func (h *AttendanceHandler) ListCourses(c *gin.Context) {
	classID, ok := parseUintQuery(c, "class_id")
	if !ok {
		return
	}
	teacherID, ok := parseUintQuery(c, "teacher_id")
	if !ok {
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "from格式错误")
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "to格式错误")
			return
		}
		to = &t
	}

	courses, err := h.service.ListCourses(c.Request.Context(), classID, teacherID, from, to)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, courses)
}

// GetCourse 获取课程
func (h *AttendanceHandler) GetCourse(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	course, err := h.service.GetCourse(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "课程不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, course)
}

// CancelCourseRequest 取消课程请求
type CancelCourseRequest struct {
	Reason string `json:"reason"`
}

// CancelCourse 取消课程
func (h *AttendanceHandler) CancelCourse(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req CancelCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	course, err := h.service.CancelCourse(c.Request.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "课程不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, course)
}

// DeleteCourse 删除课程
func (h *AttendanceHandler) DeleteCourse(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCourse(c.Request.Context(), id); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 考勤 ==========

// AbsenceRequest 缺勤登记请求
type AbsenceRequest struct {
	StudentID uint   `json:"student_id" binding:"required"`
	CourseID  uint   `json:"course_id" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
	Comment   string `json:"comment"`
}

// RecordAbsence 登记缺勤
func (h *AttendanceHandler) RecordAbsence(c *gin.Context) {
	var req AbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID := c.GetUint("user_id")
	absence, err := h.service.RecordAbsence(c.Request.Context(), req.StudentID, req.CourseID, req.Kind, req.Comment, &userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, absence)
}

// ListAbsences 缺勤列表
func (h *AttendanceHandler) ListAbsences(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	studentID, ok := parseUintQuery(c, "student_id")
	if !ok {
		return
	}
	courseID, ok := parseUintQuery(c, "course_id")
	if !ok {
		return
	}

	var justified *bool
	if raw := c.Query("justified"); raw != "" {
		v := raw == "true"
		justified = &v
	}

	absences, total, err := h.service.ListAbsences(c.Request.Context(), studentID, courseID, justified, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, absences, pageInfo)
}

// JustifyRequest 缺勤说明请求
type JustifyRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// JustifyAbsence 登记缺勤说明
func (h *AttendanceHandler) JustifyAbsence(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req JustifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID := c.GetUint("user_id")
	absence, err := h.service.JustifyAbsence(c.Request.Context(), id, userID, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "缺勤记录不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, absence)
}

// DeleteAbsence 删除缺勤记录
func (h *AttendanceHandler) DeleteAbsence(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteAbsence(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "缺勤记录不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// GetStudentAbsenceStats 学生缺勤统计
func (h *AttendanceHandler) GetStudentAbsenceStats(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStudentAbsenceStats(c.Request.Context(), id)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, stats)
}
