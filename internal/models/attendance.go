package models

import (
	"time"

	"gorm.io/gorm"
)

// Course 排课记录
type Course struct {
	TenantModel
	SubjectID uint      `json:"subject_id" gorm:"not null;index"`
	ClassID   uint      `json:"class_id" gorm:"not null;index"`
	TeacherID uint      `json:"teacher_id" gorm:"not null;index"`
	StartsAt  time.Time `json:"starts_at" gorm:"not null;index"`
	EndsAt    time.Time `json:"ends_at" gorm:"not null"`
	Room      string    `json:"room" gorm:"size:50"`
	Kind      string    `json:"kind" gorm:"size:20;default:'cours'"` // cours/td/tp/controle/autre

	Cancelled    bool   `json:"cancelled" gorm:"default:false"`
	CancelReason string `json:"cancel_reason" gorm:"size:500"`

	CreatedByID *uint `json:"created_by_id"`

	// 关联
	Subject Subject     `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Class   SchoolClass `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Teacher User        `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// TableName 指定表名
func (Course) TableName() string {
	return "courses"
}

// BeforeSave 课程引用的科目、班级、教师必须属于同一学校
func (c *Course) BeforeSave(tx *gorm.DB) error {
	if err := sameTenantRef(tx, c.TenantID, "subject", "subjects", c.SubjectID); err != nil {
		return err
	}
	if err := sameTenantRef(tx, c.TenantID, "class", "school_classes", c.ClassID); err != nil {
		return err
	}
	return sameTenantRef(tx, c.TenantID, "teacher", "users", c.TeacherID)
}

// Absence 缺勤记录
type Absence struct {
	TenantModel
	StudentID uint   `json:"student_id" gorm:"not null;index"`
	CourseID  uint   `json:"course_id" gorm:"not null;index"`
	Kind      string `json:"kind" gorm:"size:20;default:'absent'"` // absent/late
	Comment   string `json:"comment" gorm:"size:500"`

	Justified     bool       `json:"justified" gorm:"default:false"`
	JustifiedAt   *time.Time `json:"justified_at,omitempty"`
	JustifiedByID *uint      `json:"justified_by_id,omitempty"`
	JustifyReason string     `json:"justify_reason" gorm:"size:500"`

	RecordedByID *uint `json:"recorded_by_id"`

	// 关联
	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Course  Course  `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

// TableName 指定表名
func (Absence) TableName() string {
	return "absences"
}

// 缺勤类型常量
const (
	AbsenceKindAbsent = "absent"
	AbsenceKindLate   = "late"
)

// BeforeSave 缺勤引用的学生和课程必须属于同一学校
func (a *Absence) BeforeSave(tx *gorm.DB) error {
	if err := sameTenantRef(tx, a.TenantID, "student", "students", a.StudentID); err != nil {
		return err
	}
	return sameTenantRef(tx, a.TenantID, "course", "courses", a.CourseID)
}

// Justify 登记缺勤说明，单向转换
func (a *Absence) Justify(userID uint, reason string) {
	now := time.Now()
	a.Justified = true
	a.JustifiedAt = &now
	a.JustifiedByID = &userID
	a.JustifyReason = reason
}

// sameTenantRef 校验外部引用与当前记录属于同一租户
// 引用不存在时不在这里报错，交给外键约束；
// 引用存在但租户不一致时返回字段级校验错误
func sameTenantRef(tx *gorm.DB, tenantID uint, field, table string, refID uint) error {
	if refID == 0 || tenantID == 0 {
		return nil
	}

	var refTenantID *uint
	row := tx.Session(&gorm.Session{NewDB: true}).
		Table(table).
		Select("tenant_id").
		Where("id = ?", refID).
		Row()
	if err := row.Scan(&refTenantID); err != nil {
		return nil
	}

	if refTenantID == nil || *refTenantID != tenantID {
		return NewValidationError(field, "必须属于同一学校")
	}
	return nil
}
