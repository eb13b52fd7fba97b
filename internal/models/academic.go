package models

import (
	"time"

	"gorm.io/gorm"
)

// Subject 教学科目
// 名称和短代码在学校内唯一，由服务层校验
type Subject struct {
	TenantModel
	Name      string `json:"name" gorm:"not null;size:100;index"`
	ShortCode string `json:"short_code" gorm:"not null;size:10;index"`
	Color     string `json:"color" gorm:"size:7;default:'#007bff'"` // 界面展示颜色（HEX）
	Active    bool   `json:"active" gorm:"default:true"`
}

// TableName 指定表名
func (Subject) TableName() string {
	return "subjects"
}

// SchoolClass 班级
type SchoolClass struct {
	TenantModel
	Name          string `json:"name" gorm:"not null;size:50"`
	Level         string `json:"level" gorm:"not null;size:10"` // 6e/5e/4e/3e/2nde/1ere/term/autre
	SchoolYear    string `json:"school_year" gorm:"not null;size:9"` // 格式: 2024-2025
	HeadTeacherID *uint  `json:"head_teacher_id"`                    // 班主任
	MaxSize       int    `json:"max_size" gorm:"default:35"`
	Active        bool   `json:"active" gorm:"default:true"`

	// 关联
	HeadTeacher *User `json:"head_teacher,omitempty" gorm:"foreignKey:HeadTeacherID"`
}

// TableName 指定表名
func (SchoolClass) TableName() string {
	return "school_classes"
}

// BeforeSave 班主任必须属于同一学校
func (c *SchoolClass) BeforeSave(tx *gorm.DB) error {
	if c.HeadTeacherID != nil {
		return sameTenantRef(tx, c.TenantID, "head_teacher", "users", *c.HeadTeacherID)
	}
	return nil
}

// Student 学生
type Student struct {
	TenantModel
	FirstName string     `json:"first_name" gorm:"not null;size:100"`
	LastName  string     `json:"last_name" gorm:"not null;size:100"`
	BirthDate *time.Time `json:"birth_date"`
	ClassID   *uint      `json:"class_id" gorm:"index"` // 当前班级

	// 关联
	Class *SchoolClass `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

// TableName 指定表名
func (Student) TableName() string {
	return "students"
}

// BeforeSave 学生所在班级必须属于同一学校
func (s *Student) BeforeSave(tx *gorm.DB) error {
	if s.ClassID != nil {
		return sameTenantRef(tx, s.TenantID, "class", "school_classes", *s.ClassID)
	}
	return nil
}

// FamilyRelation 家庭关系：学生与家长用户的关联
type FamilyRelation struct {
	TenantModel
	StudentID uint   `json:"student_id" gorm:"not null;index"`
	ParentID  uint   `json:"parent_id" gorm:"not null;index"`          // 家长用户
	Relation  string `json:"relation" gorm:"size:20;default:'parent'"` // parent/tuteur/autre

	// 关联
	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Parent  User    `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

// TableName 指定表名
func (FamilyRelation) TableName() string {
	return "family_relations"
}

// BeforeSave 学生和家长都必须属于同一学校
func (r *FamilyRelation) BeforeSave(tx *gorm.DB) error {
	if err := sameTenantRef(tx, r.TenantID, "student", "students", r.StudentID); err != nil {
		return err
	}
	return sameTenantRef(tx, r.TenantID, "parent", "users", r.ParentID)
}
