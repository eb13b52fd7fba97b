package services

import (
	"context"
	"fmt"
	"time"

	"xamu/internal/database"
	"xamu/internal/models"

	"gorm.io/gorm"
)

// AcademicService 教学组织服务：科目、班级、学生、家庭关系
// 所有查询走context中的当前租户，由租户隔离插件自动过滤和注入
type AcademicService struct {
	db *gorm.DB
}

func NewAcademicService() *AcademicService {
	return &AcademicService{
		db: database.GetDB(),
	}
}

// NewAcademicServiceWith 用指定数据库创建服务
func NewAcademicServiceWith(db *gorm.DB) *AcademicService {
	return &AcademicService{db: db}
}

// ========== 科目 ==========

// CreateSubject 创建科目
// 名称和短代码在学校内唯一
func (s *AcademicService) CreateSubject(ctx context.Context, name, shortCode, color string) (*models.Subject, error) {
	if name == "" || shortCode == "" {
		return nil, fmt.Errorf("科目名称和短代码不能为空")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Subject{}).
		Where("name = ? OR short_code = ?", name, shortCode).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("科目名称或短代码已存在")
	}

	subject := &models.Subject{
		Name:      name,
		ShortCode: shortCode,
		Active:    true,
	}
	if color != "" {
		subject.Color = color
	}

	err := s.db.WithContext(ctx).Create(subject).Error
	return subject, err
}

// ListSubjects 科目列表
func (s *AcademicService) ListSubjects(ctx context.Context, activeOnly bool) ([]*models.Subject, error) {
	var subjects []*models.Subject
	query := s.db.WithContext(ctx).Model(&models.Subject{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("name").Find(&subjects).Error
	return subjects, err
}

// GetSubject 获取科目
func (s *AcademicService) GetSubject(ctx context.Context, id uint) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.WithContext(ctx).First(&subject, id).Error
	return &subject, err
}

// UpdateSubject 更新科目
func (s *AcademicService) UpdateSubject(ctx context.Context, id uint, name, shortCode, color string, active *bool) (*models.Subject, error) {
	var subject models.Subject
	if err := s.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, err
	}

	if name != "" && name != subject.Name {
		var count int64
		s.db.WithContext(ctx).Model(&models.Subject{}).
			Where("name = ? AND id <> ?", name, id).Count(&count)
		if count > 0 {
			return nil, fmt.Errorf("科目名称已存在")
		}
		subject.Name = name
	}
	if shortCode != "" && shortCode != subject.ShortCode {
		var count int64
		s.db.WithContext(ctx).Model(&models.Subject{}).
			Where("short_code = ? AND id <> ?", shortCode, id).Count(&count)
		if count > 0 {
			return nil, fmt.Errorf("科目短代码已存在")
		}
		subject.ShortCode = shortCode
	}
	if color != "" {
		subject.Color = color
	}
	if active != nil {
		subject.Active = *active
	}

	err := s.db.WithContext(ctx).Save(&subject).Error
	return &subject, err
}

// DeleteSubject 删除科目
func (s *AcademicService) DeleteSubject(ctx context.Context, id uint) error {
	var count int64
	s.db.WithContext(ctx).Model(&models.Course{}).Where("subject_id = ?", id).Count(&count)
	if count > 0 {
		return fmt.Errorf("科目已有排课记录，不能删除")
	}
	return s.db.WithContext(ctx).Delete(&models.Subject{}, id).Error
}

// ========== 班级 ==========

// CreateClass 创建班级
func (s *AcademicService) CreateClass(ctx context.Context, name, level, schoolYear string, headTeacherID *uint, maxSize int) (*models.SchoolClass, error) {
	if name == "" || level == "" || schoolYear == "" {
		return nil, fmt.Errorf("班级名称、年级和学年不能为空")
	}

	// 同一学年内班级名称唯一
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SchoolClass{}).
		Where("name = ? AND school_year = ?", name, schoolYear).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("该学年已存在同名班级")
	}

	class := &models.SchoolClass{
		Name:          name,
		Level:         level,
		SchoolYear:    schoolYear,
		HeadTeacherID: headTeacherID,
		Active:        true,
	}
	if maxSize > 0 {
		class.MaxSize = maxSize
	}

	err := s.db.WithContext(ctx).Create(class).Error
	return class, err
}

// ListClasses 班级列表
func (s *AcademicService) ListClasses(ctx context.Context, schoolYear string, activeOnly bool) ([]*models.SchoolClass, error) {
	var classes []*models.SchoolClass
	query := s.db.WithContext(ctx).Model(&models.SchoolClass{}).Preload("HeadTeacher")
	if schoolYear != "" {
		query = query.Where("school_year = ?", schoolYear)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("level, name").Find(&classes).Error
	return classes, err
}

// GetClass 获取班级
func (s *AcademicService) GetClass(ctx context.Context, id uint) (*models.SchoolClass, error) {
	var class models.SchoolClass
	err := s.db.WithContext(ctx).Preload("HeadTeacher").First(&class, id).Error
	return &class, err
}

// UpdateClass 更新班级
func (s *AcademicService) UpdateClass(ctx context.Context, id uint, name string, headTeacherID *uint, maxSize int, active *bool) (*models.SchoolClass, error) {
	var class models.SchoolClass
	if err := s.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		class.Name = name
	}
	if headTeacherID != nil {
		class.HeadTeacherID = headTeacherID
	}
	if maxSize > 0 {
		class.MaxSize = maxSize
	}
	if active != nil {
		class.Active = *active
	}

	err := s.db.WithContext(ctx).Save(&class).Error
	return &class, err
}

// DeleteClass 删除班级
func (s *AcademicService) DeleteClass(ctx context.Context, id uint) error {
	var count int64
	s.db.WithContext(ctx).Model(&models.Student{}).Where("class_id = ?", id).Count(&count)
	if count > 0 {
		return fmt.Errorf("班级内还有学生，不能删除")
	}
	return s.db.WithContext(ctx).Delete(&models.SchoolClass{}, id).Error
}

// ========== 学生 ==========

// CreateStudent 创建学生
func (s *AcademicService) CreateStudent(ctx context.Context, firstName, lastName string, birthDate *time.Time, classID *uint) (*models.Student, error) {
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("学生姓名不能为空")
	}

	student := &models.Student{
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: birthDate,
		ClassID:   classID,
	}

	err := s.db.WithContext(ctx).Create(student).Error
	return student, err
}

// ListStudents 学生列表（分页）
func (s *AcademicService) ListStudents(ctx context.Context, classID *uint, keyword string, page, pageSize int) ([]*models.Student, int64, error) {
	var students []*models.Student
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Student{})
	if classID != nil {
		query = query.Where("class_id = ?", *classID)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("first_name LIKE ? OR last_name LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Class").Order("last_name, first_name").
		Offset(offset).Limit(pageSize).Find(&students).Error
	if err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

// GetStudent 获取学生
func (s *AcademicService) GetStudent(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).Preload("Class").First(&student, id).Error
	return &student, err
}

// UpdateStudent 更新学生
func (s *AcademicService) UpdateStudent(ctx context.Context, id uint, firstName, lastName string, birthDate *time.Time, classID *uint) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, err
	}

	if firstName != "" {
		student.FirstName = firstName
	}
	if lastName != "" {
		student.LastName = lastName
	}
	if birthDate != nil {
		student.BirthDate = birthDate
	}
	if classID != nil {
		student.ClassID = classID
	}

	err := s.db.WithContext(ctx).Save(&student).Error
	return &student, err
}

// DeleteStudent 删除学生
func (s *AcademicService) DeleteStudent(ctx context.Context, id uint) error {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&student).Error
}

// ========== 家庭关系 ==========

// CreateFamilyRelation 关联学生和家长
func (s *AcademicService) CreateFamilyRelation(ctx context.Context, studentID, parentID uint, relation string) (*models.FamilyRelation, error) {
	// 家长必须是本校的parent角色用户
	var parent models.User
	if err := s.db.WithContext(ctx).First(&parent, parentID).Error; err != nil {
		return nil, fmt.Errorf("家长用户不存在")
	}
	if parent.Role != models.RoleParent {
		return nil, fmt.Errorf("用户不是家长角色")
	}

	var count int64
	s.db.WithContext(ctx).Model(&models.FamilyRelation{}).
		Where("student_id = ? AND parent_id = ?", studentID, parentID).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("该家庭关系已存在")
	}

	rel := &models.FamilyRelation{
		StudentID: studentID,
		ParentID:  parentID,
	}
	if relation != "" {
		rel.Relation = relation
	}

	err := s.db.WithContext(ctx).Create(rel).Error
	return rel, err
}

// ListStudentFamily 学生的家庭关系列表
func (s *AcademicService) ListStudentFamily(ctx context.Context, studentID uint) ([]*models.FamilyRelation, error) {
	var relations []*models.FamilyRelation
	err := s.db.WithContext(ctx).Where("student_id = ?", studentID).
		Preload("Parent").Find(&relations).Error
	return relations, err
}

// DeleteFamilyRelation 解除家庭关系
func (s *AcademicService) DeleteFamilyRelation(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.FamilyRelation{}, id).Error
}
