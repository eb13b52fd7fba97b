package services

import (
	"context"
	"testing"
	"time"

	"xamu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type attendanceFixture struct {
	db      *gorm.DB
	svc     *AttendanceService
	ctx     context.Context
	tenant  *models.Tenant
	subject *models.Subject
	class   *models.SchoolClass
	teacher *models.User
	student *models.Student
}

func newAttendanceFixture(t *testing.T) *attendanceFixture {
	db := newServiceTestDB(t)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	subject := &models.Subject{Name: "数学", ShortCode: "MATH", Active: true}
	require.NoError(t, db.WithContext(ctx).Create(subject).Error)
	class := &models.SchoolClass{Name: "6A", Level: "6e", SchoolYear: "2025-2026", Active: true}
	require.NoError(t, db.WithContext(ctx).Create(class).Error)
	teacher := newTenantUser(t, db, tenant, "prof@etb001.fr", models.RoleTeacher)
	student := &models.Student{FirstName: "Lucie", LastName: "Martin", ClassID: &class.ID}
	require.NoError(t, db.WithContext(ctx).Create(student).Error)

	return &attendanceFixture{
		db:      db,
		svc:     NewAttendanceServiceWith(db),
		ctx:     ctx,
		tenant:  tenant,
		subject: subject,
		class:   class,
		teacher: teacher,
		student: student,
	}
}

func (f *attendanceFixture) newCourse(t *testing.T, startsAt time.Time, duration time.Duration) *models.Course {
	course, err := f.svc.CreateCourse(f.ctx, f.subject.ID, f.class.ID, f.teacher.ID,
		startsAt, startsAt.Add(duration), "B204", "", nil)
	require.NoError(t, err)
	return course
}

func TestCreateCourseTeacherConflict(t *testing.T) {
	f := newAttendanceFixture(t)
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

	f.newCourse(t, start, time.Hour)

	// 时间重叠的排课被拒绝
	_, err := f.svc.CreateCourse(f.ctx, f.subject.ID, f.class.ID, f.teacher.ID,
		start.Add(30*time.Minute), start.Add(90*time.Minute), "", "", nil)
	assert.Error(t, err)

	// 紧挨着的课不算冲突
	_, err = f.svc.CreateCourse(f.ctx, f.subject.ID, f.class.ID, f.teacher.ID,
		start.Add(time.Hour), start.Add(2*time.Hour), "", "", nil)
	assert.NoError(t, err)
}

func TestCreateCourseEndBeforeStart(t *testing.T) {
	f := newAttendanceFixture(t)
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.CreateCourse(f.ctx, f.subject.ID, f.class.ID, f.teacher.ID,
		start, start.Add(-time.Hour), "", "", nil)
	assert.Error(t, err)
}

func TestListCoursesTimeWindow(t *testing.T) {
	f := newAttendanceFixture(t)
	monday := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

	f.newCourse(t, monday, time.Hour)
	f.newCourse(t, monday.AddDate(0, 0, 1), time.Hour)
	f.newCourse(t, monday.AddDate(0, 0, 8), time.Hour)

	from := monday.Add(-time.Hour)
	to := monday.AddDate(0, 0, 5)
	courses, err := f.svc.ListCourses(f.ctx, nil, nil, &from, &to)
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestCancelCourseOnce(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)

	cancelled, err := f.svc.CancelCourse(f.ctx, course.ID, "教师请假")
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.Equal(t, "教师请假", cancelled.CancelReason)

	_, err = f.svc.CancelCourse(f.ctx, course.ID, "再次取消")
	assert.Error(t, err)
}

func TestRecordAbsenceRules(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)

	// 无效类型
	_, err := f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, "vanished", "", nil)
	assert.Error(t, err)

	absence, err := f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, models.AbsenceKindAbsent, "", nil)
	require.NoError(t, err)
	assert.False(t, absence.Justified)

	// 同一学生同一课程只登记一次
	_, err = f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, models.AbsenceKindLate, "", nil)
	assert.Error(t, err)
}

func TestRecordAbsenceStudentNotInClass(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)

	outsider := &models.Student{FirstName: "Paul", LastName: "Petit"}
	require.NoError(t, f.db.WithContext(f.ctx).Create(outsider).Error)

	_, err := f.svc.RecordAbsence(f.ctx, outsider.ID, course.ID, models.AbsenceKindAbsent, "", nil)
	assert.Error(t, err)
}

func TestRecordAbsenceCancelledCourse(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)
	_, err := f.svc.CancelCourse(f.ctx, course.ID, "停课")
	require.NoError(t, err)

	_, err = f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, models.AbsenceKindAbsent, "", nil)
	assert.Error(t, err)
}

func TestJustifyAbsenceOneWay(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)
	absence, err := f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, models.AbsenceKindAbsent, "", nil)
	require.NoError(t, err)

	justified, err := f.svc.JustifyAbsence(f.ctx, absence.ID, f.teacher.ID, "病假")
	require.NoError(t, err)
	assert.True(t, justified.Justified)
	assert.Equal(t, "病假", justified.JustifyReason)
	require.NotNil(t, justified.JustifiedByID)
	assert.Equal(t, f.teacher.ID, *justified.JustifiedByID)

	// 已说明的缺勤不能再次说明，也不能删除
	_, err = f.svc.JustifyAbsence(f.ctx, absence.ID, f.teacher.ID, "改口")
	assert.Error(t, err)
	assert.Error(t, f.svc.DeleteAbsence(f.ctx, absence.ID))
}

func TestDeleteCourseWithAbsencesBlocked(t *testing.T) {
	f := newAttendanceFixture(t)
	course := f.newCourse(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), time.Hour)
	_, err := f.svc.RecordAbsence(f.ctx, f.student.ID, course.ID, models.AbsenceKindAbsent, "", nil)
	require.NoError(t, err)

	assert.Error(t, f.svc.DeleteCourse(f.ctx, course.ID))
}

func TestStudentAbsenceStats(t *testing.T) {
	f := newAttendanceFixture(t)
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

	first := f.newCourse(t, start, time.Hour)
	second := f.newCourse(t, start.Add(2*time.Hour), time.Hour)
	third := f.newCourse(t, start.Add(4*time.Hour), time.Hour)

	a1, err := f.svc.RecordAbsence(f.ctx, f.student.ID, first.ID, models.AbsenceKindAbsent, "", nil)
	require.NoError(t, err)
	_, err = f.svc.RecordAbsence(f.ctx, f.student.ID, second.ID, models.AbsenceKindLate, "", nil)
	require.NoError(t, err)
	_, err = f.svc.RecordAbsence(f.ctx, f.student.ID, third.ID, models.AbsenceKindAbsent, "", nil)
	require.NoError(t, err)

	_, err = f.svc.JustifyAbsence(f.ctx, a1.ID, f.teacher.ID, "病假")
	require.NoError(t, err)

	stats, err := f.svc.GetStudentAbsenceStats(f.ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Justified)
	assert.Equal(t, int64(2), stats.Unjustified)
	assert.Equal(t, int64(1), stats.Late)
}
