package services

import (
	"testing"
	"time"

	"xamu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubjectUniquePerTenant(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	t2 := newActiveTenant(t, db, "etb002")

	_, err := svc.CreateSubject(tenantCtx(t1), "数学", "MATH", "")
	require.NoError(t, err)

	// 同校重名或同短代码被拒绝
	_, err = svc.CreateSubject(tenantCtx(t1), "数学", "MATH2", "")
	assert.Error(t, err)
	_, err = svc.CreateSubject(tenantCtx(t1), "高等数学", "MATH", "")
	assert.Error(t, err)

	// 别的学校可以用同样的名称
	_, err = svc.CreateSubject(tenantCtx(t2), "数学", "MATH", "")
	assert.NoError(t, err)
}

func TestListSubjectsActiveOnly(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(t1)

	_, err := svc.CreateSubject(ctx, "数学", "MATH", "")
	require.NoError(t, err)
	inactive, err := svc.CreateSubject(ctx, "拉丁语", "LAT", "")
	require.NoError(t, err)

	off := false
	_, err = svc.UpdateSubject(ctx, inactive.ID, "", "", "", &off)
	require.NoError(t, err)

	all, err := svc.ListSubjects(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListSubjects(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "数学", active[0].Name)
}

func TestCreateClassUniquePerSchoolYear(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(t1)

	_, err := svc.CreateClass(ctx, "6A", "6e", "2025-2026", nil, 0)
	require.NoError(t, err)

	_, err = svc.CreateClass(ctx, "6A", "6e", "2025-2026", nil, 0)
	assert.Error(t, err)

	// 不同学年可以重名
	_, err = svc.CreateClass(ctx, "6A", "6e", "2026-2027", nil, 0)
	assert.NoError(t, err)
}

func TestCreateClassHeadTeacherSameTenant(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	t2 := newActiveTenant(t, db, "etb002")

	otherTeacher := newTenantUser(t, db, t2, "prof@etb002.fr", models.RoleTeacher)

	// 班主任属于别的学校，模型钩子拒绝
	_, err := svc.CreateClass(tenantCtx(t1), "6A", "6e", "2025-2026", &otherTeacher.ID, 0)
	require.Error(t, err)

	ownTeacher := newTenantUser(t, db, t1, "prof@etb001.fr", models.RoleTeacher)
	class, err := svc.CreateClass(tenantCtx(t1), "6A", "6e", "2025-2026", &ownTeacher.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, class.HeadTeacherID)
	assert.Equal(t, ownTeacher.ID, *class.HeadTeacherID)
}

func TestDeleteClassWithStudentsBlocked(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(t1)

	class, err := svc.CreateClass(ctx, "6A", "6e", "2025-2026", nil, 0)
	require.NoError(t, err)
	_, err = svc.CreateStudent(ctx, "Lucie", "Martin", nil, &class.ID)
	require.NoError(t, err)

	err = svc.DeleteClass(ctx, class.ID)
	assert.Error(t, err)
}

func TestListStudentsScopedAndFiltered(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	t2 := newActiveTenant(t, db, "etb002")

	birthDate := time.Date(2013, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateStudent(tenantCtx(t1), "Lucie", "Martin", &birthDate, nil)
	require.NoError(t, err)
	_, err = svc.CreateStudent(tenantCtx(t1), "Paul", "Petit", nil, nil)
	require.NoError(t, err)
	_, err = svc.CreateStudent(tenantCtx(t2), "Emma", "Martin", nil, nil)
	require.NoError(t, err)

	students, total, err := svc.ListStudents(tenantCtx(t1), nil, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, students, 2)

	students, total, err = svc.ListStudents(tenantCtx(t1), nil, "Mart", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, students, 1)
	assert.Equal(t, "Lucie", students[0].FirstName)
}

func TestFamilyRelationRequiresParentRole(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAcademicServiceWith(db)
	t1 := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(t1)

	student, err := svc.CreateStudent(ctx, "Lucie", "Martin", nil, nil)
	require.NoError(t, err)
	teacher := newTenantUser(t, db, t1, "prof@etb001.fr", models.RoleTeacher)
	parent := newTenantUser(t, db, t1, "parent@etb001.fr", models.RoleParent)

	_, err = svc.CreateFamilyRelation(ctx, student.ID, teacher.ID, "")
	assert.Error(t, err)

	rel, err := svc.CreateFamilyRelation(ctx, student.ID, parent.ID, "tuteur")
	require.NoError(t, err)
	assert.Equal(t, "tuteur", rel.Relation)

	// 重复关系被拒绝
	_, err = svc.CreateFamilyRelation(ctx, student.ID, parent.ID, "")
	assert.Error(t, err)

	relations, err := svc.ListStudentFamily(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, relations, 1)
}
