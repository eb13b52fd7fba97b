package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"xamu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImportSession(t *testing.T, svc *ImportService, ctx context.Context, kind string) *models.ImportSession {
	session := &models.ImportSession{
		Kind:       kind,
		Status:     models.ImportStatusPending,
		SourceFile: "test.csv",
	}
	require.NoError(t, svc.db.WithContext(ctx).Create(session).Error)
	return session
}

func TestParseCSVCommaSeparated(t *testing.T) {
	data := []byte("email,name,role\na@x.fr,Alice,teacher\nb@x.fr,Bob,cpe\n")
	rows, err := parseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a@x.fr", "Alice", "teacher"}, rows[0])
}

func TestParseCSVSemicolonSeparated(t *testing.T) {
	data := []byte("email;name;role\na@x.fr;Alice;teacher\n")
	rows, err := parseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a@x.fr", "Alice", "teacher"}, rows[0])
}

func TestParseCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("email;name;role\na@x.fr;Alice;teacher\n")...)
	rows, err := parseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@x.fr", rows[0][0])
}

func TestParseCSVNoDataRows(t *testing.T) {
	_, err := parseCSV([]byte("email;name;role\n"))
	assert.Error(t, err)
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		password, err := generatePassword(12)
		require.NoError(t, err)
		assert.Len(t, password, 12)
		for _, r := range password {
			assert.True(t, strings.ContainsRune(passwordCharset, r), "字符 %q 不在字符集中", r)
		}
		seen[password] = true
	}
	// 不应该出现大量重复
	assert.Greater(t, len(seen), 15)
}

func TestStartImportValidation(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	_, err := svc.StartImport(ctx, "unknown", "x.csv", []byte("a;b\n1;2\n"), 1)
	assert.Error(t, err)

	_, err = svc.StartImport(ctx, models.ImportKindPersonnel, "x.csv", nil, 1)
	assert.Error(t, err)

	// 无租户context拒绝
	_, err = svc.StartImport(context.Background(), models.ImportKindPersonnel, "x.csv", []byte("a;b\n1;2\n"), 1)
	assert.Error(t, err)
}

func TestProcessPersonnelImport(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	session := newImportSession(t, svc, ctx, models.ImportKindPersonnel)

	data := []byte("email;name;role;phone\n" +
		"alice@etb001.fr;Alice Durand;teacher;0601020304\n" +
		"bob@etb001.fr;Bob Martin;cpe\n" +
		"carol@etb001.fr;Carol;directeur\n") // 无效角色
	svc.process(ctx, session.ID, models.ImportKindPersonnel, data)

	var stored models.ImportSession
	require.NoError(t, db.WithContext(ctx).First(&stored, session.ID).Error)
	assert.Equal(t, models.ImportStatusDone, stored.Status)
	require.NotNil(t, stored.FinishedAt)

	var results ImportResults
	require.NoError(t, json.Unmarshal(stored.Results, &results))
	assert.Equal(t, 3, results.Total)
	assert.Equal(t, 2, results.Created)
	require.Len(t, results.Errors, 1)
	assert.Equal(t, 4, results.Errors[0].Line)

	// 创建的用户归属当前学校
	var users []models.User
	require.NoError(t, db.Where("email LIKE ?", "%etb001.fr").Find(&users).Error)
	require.Len(t, users, 2)
	for _, user := range users {
		require.NotNil(t, user.TenantID)
		assert.Equal(t, tenant.ID, *user.TenantID)
	}

	// 每个账号有一条初始密码记录
	accounts, err := svc.ListGeneratedAccounts(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.Len(t, account.InitialPassword, 12)
	}
}

func TestProcessPersonnelSkipsExistingEmail(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)
	newTenantUser(t, db, tenant, "alice@etb001.fr", models.RoleTeacher)

	session := newImportSession(t, svc, ctx, models.ImportKindPersonnel)
	data := []byte("email;name;role\nalice@etb001.fr;Alice;teacher\n")
	svc.process(ctx, session.ID, models.ImportKindPersonnel, data)

	var stored models.ImportSession
	require.NoError(t, db.WithContext(ctx).First(&stored, session.ID).Error)
	// 唯一一行失败，会话整体标记为error
	assert.Equal(t, models.ImportStatusError, stored.Status)
}

func TestProcessClassesImport(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	session := newImportSession(t, svc, ctx, models.ImportKindClasses)
	data := []byte("name;level;school_year\n6A;6e;2025-2026\n6A;6e;2025-2026\n5B;5e;2025-2026\n")
	svc.process(ctx, session.ID, models.ImportKindClasses, data)

	var stored models.ImportSession
	require.NoError(t, db.WithContext(ctx).First(&stored, session.ID).Error)
	assert.Equal(t, models.ImportStatusDone, stored.Status)

	var results ImportResults
	require.NoError(t, json.Unmarshal(stored.Results, &results))
	assert.Equal(t, 2, results.Created)
	require.Len(t, results.Errors, 1) // 重复班级

	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&models.SchoolClass{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestProcessStudentsImportWithClass(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	class := &models.SchoolClass{Name: "6A", Level: "6e", SchoolYear: "2025-2026", Active: true}
	require.NoError(t, db.WithContext(ctx).Create(class).Error)

	session := newImportSession(t, svc, ctx, models.ImportKindStudents)
	data := []byte("first_name;last_name;birth_date;class\n" +
		"Lucie;Martin;2013-04-02;6A\n" +
		"Paul;Petit;;\n" +
		"Emma;Durand;2013-09-15;6Z\n") // 班级不存在
	svc.process(ctx, session.ID, models.ImportKindStudents, data)

	var stored models.ImportSession
	require.NoError(t, db.WithContext(ctx).First(&stored, session.ID).Error)
	assert.Equal(t, models.ImportStatusDone, stored.Status)

	var results ImportResults
	require.NoError(t, json.Unmarshal(stored.Results, &results))
	assert.Equal(t, 2, results.Created)
	require.Len(t, results.Errors, 1)

	var students []models.Student
	require.NoError(t, db.WithContext(ctx).Order("last_name").Find(&students).Error)
	require.Len(t, students, 2)
	require.NotNil(t, students[0].ClassID) // Martin
	assert.Equal(t, class.ID, *students[0].ClassID)
	assert.Nil(t, students[1].ClassID) // Petit
}

func TestProcessBadCSVMarksError(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	session := newImportSession(t, svc, ctx, models.ImportKindPersonnel)
	svc.process(ctx, session.ID, models.ImportKindPersonnel, []byte("only-header\n"))

	var stored models.ImportSession
	require.NoError(t, db.WithContext(ctx).First(&stored, session.ID).Error)
	assert.Equal(t, models.ImportStatusError, stored.Status)
}

func TestSubscribeReceivesProgress(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)

	ch := svc.Subscribe(42)
	svc.publish(ImportProgress{SessionID: 42, Status: models.ImportStatusRunning, Processed: 1, Total: 2})

	progress := <-ch
	assert.Equal(t, uint(42), progress.SessionID)
	assert.Equal(t, 1, progress.Processed)

	// 其他会话的事件不会串台
	svc.publish(ImportProgress{SessionID: 99, Status: models.ImportStatusDone})
	select {
	case p := <-ch:
		t.Fatalf("收到了不属于本会话的事件: %+v", p)
	default:
	}

	svc.Unsubscribe(42, ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestCleanupOldSessions(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewImportServiceWith(db)
	tenant := newActiveTenant(t, db, "etb001")
	ctx := tenantCtx(tenant)

	old := newImportSession(t, svc, ctx, models.ImportKindPersonnel)
	fresh := newImportSession(t, svc, ctx, models.ImportKindPersonnel)

	// 把一条会话改成一年前创建
	require.NoError(t, db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().AddDate(-1, 0, 0)).Error)

	require.NoError(t, svc.CleanupOldSessions(90*24*time.Hour))

	var remaining []models.ImportSession
	require.NoError(t, db.WithContext(ctx).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
