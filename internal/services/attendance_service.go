package services

import (
	"context"
	"fmt"
	"time"

	"xamu/internal/database"
	"xamu/internal/models"

	"gorm.io/gorm"
)

// AttendanceService 排课与考勤服务
type AttendanceService struct {
	db *gorm.DB
}

func NewAttendanceService() *AttendanceService {
	return &AttendanceService{
		db: database.GetDB(),
	}
}

// NewAttendanceServiceWith 用指定数据库创建服务
func NewAttendanceServiceWith(db *gorm.DB) *AttendanceService {
	return &AttendanceService{db: db}
}

// ========== 排课 ==========

// CreateCourse 创建课程
func (s *AttendanceService) CreateCourse(ctx context.Context, subjectID, classID, teacherID uint, startsAt, endsAt time.Time, room, kind string, createdByID *uint) (*models.Course, error) {
	if !endsAt.After(startsAt) {
		return nil, fmt.Errorf("结束时间必须晚于开始时间")
	}

	// 教师时间冲突检查
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Course{}).
		Where("teacher_id = ? AND cancelled = ? AND starts_at < ? AND ends_at > ?",
			teacherID, false, endsAt, startsAt).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("教师在该时段已有排课")
	}

	course := &models.Course{
		SubjectID:   subjectID,
		ClassID:     classID,
		TeacherID:   teacherID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Room:        room,
		CreatedByID: createdByID,
	}
	if kind != "" {
		course.Kind = kind
	}

	err := s.db.WithContext(ctx).Create(course).Error
	return course, err
}

// ListCourses 课程列表：按班级、教师和时间段过滤
func (s *AttendanceService) ListCourses(ctx context.Context, classID, teacherID *uint, from, to *time.Time) ([]*models.Course, error) {
	var courses []*models.Course

	query := s.db.WithContext(ctx).Model(&models.Course{}).
		Preload("Subject").Preload("Class").Preload("Teacher")
	if classID != nil {
		query = query.Where("class_id = ?", *classID)
	}
	if teacherID != nil {
		query = query.Where("teacher_id = ?", *teacherID)
	}
	if from != nil {
		query = query.Where("starts_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("starts_at < ?", *to)
	}

	err := query.Order("starts_at").Find(&courses).Error
	return courses, err
}

// GetCourse 获取课程
func (s *AttendanceService) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := s.db.WithContext(ctx).
		Preload("Subject").Preload("Class").Preload("Teacher").
		First(&course, id).Error
	return &course, err
}

// CancelCourse 取消课程
func (s *AttendanceService) CancelCourse(ctx context.Context, id uint, reason string) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	if course.Cancelled {
		return nil, fmt.Errorf("课程已取消")
	}

	course.Cancelled = true
	course.CancelReason = reason
	err := s.db.WithContext(ctx).Save(&course).Error
	return &course, err
}

// DeleteCourse 删除课程
func (s *AttendanceService) DeleteCourse(ctx context.Context, id uint) error {
	var count int64
	s.db.WithContext(ctx).Model(&models.Absence{}).Where("course_id = ?", id).Count(&count)
	if count > 0 {
		return fmt.Errorf("课程已有考勤记录，不能删除")
	}
	return s.db.WithContext(ctx).Delete(&models.Course{}, id).Error
}

// ========== 考勤 ==========

// RecordAbsence 登记缺勤
func (s *AttendanceService) RecordAbsence(ctx context.Context, studentID, courseID uint, kind, comment string, recordedByID *uint) (*models.Absence, error) {
	if kind != models.AbsenceKindAbsent && kind != models.AbsenceKindLate {
		return nil, fmt.Errorf("无效的缺勤类型: %s", kind)
	}

	// 学生必须属于该课程的班级
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		return nil, fmt.Errorf("课程不存在")
	}
	if course.Cancelled {
		return nil, fmt.Errorf("课程已取消，不能登记缺勤")
	}

	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
		return nil, fmt.Errorf("学生不存在")
	}
	if student.ClassID == nil || *student.ClassID != course.ClassID {
		return nil, fmt.Errorf("学生不在该课程的班级")
	}

	// 同一学生同一课程只登记一次
	var count int64
	s.db.WithContext(ctx).Model(&models.Absence{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("该学生在这节课已有缺勤记录")
	}

	absence := &models.Absence{
		StudentID:    studentID,
		CourseID:     courseID,
		Kind:         kind,
		Comment:      comment,
		RecordedByID: recordedByID,
	}

	err := s.db.WithContext(ctx).Create(absence).Error
	return absence, err
}

// ListAbsences 缺勤列表：按学生、课程、是否已说明过滤（分页）
func (s *AttendanceService) ListAbsences(ctx context.Context, studentID, courseID *uint, justified *bool, page, pageSize int) ([]*models.Absence, int64, error) {
	var absences []*models.Absence
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Absence{})
	if studentID != nil {
		query = query.Where("student_id = ?", *studentID)
	}
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}
	if justified != nil {
		query = query.Where("justified = ?", *justified)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Student").Preload("Course").Preload("Course.Subject").
		Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&absences).Error
	if err != nil {
		return nil, 0, err
	}

	return absences, total, nil
}

// JustifyAbsence 登记缺勤说明
// justified 是单向转换，已说明的缺勤不能撤销
func (s *AttendanceService) JustifyAbsence(ctx context.Context, id, userID uint, reason string) (*models.Absence, error) {
	var absence models.Absence
	if err := s.db.WithContext(ctx).First(&absence, id).Error; err != nil {
		return nil, err
	}
	if absence.Justified {
		return nil, fmt.Errorf("该缺勤已有说明")
	}

	absence.Justify(userID, reason)
	err := s.db.WithContext(ctx).Save(&absence).Error
	return &absence, err
}

// DeleteAbsence 删除缺勤记录
func (s *AttendanceService) DeleteAbsence(ctx context.Context, id uint) error {
	var absence models.Absence
	if err := s.db.WithContext(ctx).First(&absence, id).Error; err != nil {
		return err
	}
	if absence.Justified {
		return fmt.Errorf("已有说明的缺勤不能删除")
	}
	return s.db.WithContext(ctx).Delete(&absence).Error
}

// StudentAbsenceStats 学生缺勤统计
type StudentAbsenceStats struct {
	StudentID   uint  `json:"student_id"`
	Total       int64 `json:"total"`
	Justified   int64 `json:"justified"`
	Unjustified int64 `json:"unjustified"`
	Late        int64 `json:"late"`
}

// GetStudentAbsenceStats 统计学生的缺勤情况
func (s *AttendanceService) GetStudentAbsenceStats(ctx context.Context, studentID uint) (*StudentAbsenceStats, error) {
	stats := &StudentAbsenceStats{StudentID: studentID}

	base := s.db.WithContext(ctx).Model(&models.Absence{}).Where("student_id = ?", studentID)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	base.Session(&gorm.Session{}).Where("justified = ?", true).Count(&stats.Justified)
	base.Session(&gorm.Session{}).Where("justified = ?", false).Count(&stats.Unjustified)
	base.Session(&gorm.Session{}).Where("kind = ?", models.AbsenceKindLate).Count(&stats.Late)

	return stats, nil
}
