package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"xamu/internal/database"
	"xamu/internal/models"
	"xamu/internal/tenantctx"
	"xamu/internal/tenantdb"
	"xamu/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportService CSV批量导入服务
// 上传后创建会话记录并在后台goroutine处理，
// 后台处理通过 tenantctx.RunWithTenant 继承上传时的租户
type ImportService struct {
	db  *gorm.DB
	log *logrus.Logger

	mu          sync.Mutex
	subscribers map[uint][]chan ImportProgress
}

// ImportProgress 导入进度事件，推送给websocket订阅者
type ImportProgress struct {
	SessionID uint   `json:"session_id"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ImportRowError 单行处理错误
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResults 会话处理结果，JSON落库
type ImportResults struct {
	Total   int              `json:"total"`
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

func NewImportService() *ImportService {
	return NewImportServiceWith(database.GetDB())
}

// NewImportServiceWith 用指定数据库创建导入服务
func NewImportServiceWith(db *gorm.DB) *ImportService {
	return &ImportService{
		db:          db,
		log:         logger.GetLogger(),
		subscribers: make(map[uint][]chan ImportProgress),
	}
}

// ========== 进度订阅 ==========

// Subscribe 订阅导入会话的进度事件
func (s *ImportService) Subscribe(sessionID uint) chan ImportProgress {
	ch := make(chan ImportProgress, 16)
	s.mu.Lock()
	s.subscribers[sessionID] = append(s.subscribers[sessionID], ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe 取消订阅
func (s *ImportService) Unsubscribe(sessionID uint, ch chan ImportProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[sessionID]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(s.subscribers[sessionID]) == 0 {
		delete(s.subscribers, sessionID)
	}
}

func (s *ImportService) publish(progress ImportProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers[progress.SessionID] {
		select {
		case ch <- progress:
		default:
			// 订阅者跟不上时丢弃事件，不阻塞导入
		}
	}
}

// ========== 导入入口 ==========

// IsValidKind 检查导入类型
func (s *ImportService) IsValidKind(kind string) bool {
	switch kind {
	case models.ImportKindPersonnel, models.ImportKindClasses, models.ImportKindStudents:
		return true
	default:
		return false
	}
}

// StartImport 创建导入会话并在后台开始处理
func (s *ImportService) StartImport(ctx context.Context, kind, filename string, data []byte, createdByID uint) (*models.ImportSession, error) {
	if !s.IsValidKind(kind) {
		return nil, fmt.Errorf("无效的导入类型: %s", kind)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("文件内容为空")
	}

	tenant, ok := tenantctx.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("缺少当前学校")
	}

	session := &models.ImportSession{
		Kind:        kind,
		Status:      models.ImportStatusPending,
		SourceFile:  filename,
		CreatedByID: &createdByID,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}

	// 后台goroutine不依赖请求context，租户单独继承
	go func() {
		_ = tenantctx.RunWithTenant(context.Background(), tenant, func(runCtx context.Context) error {
			s.process(runCtx, session.ID, kind, data)
			return nil
		})
	}()

	return session, nil
}

// GetSession 获取导入会话
func (s *ImportService) GetSession(ctx context.Context, id uint) (*models.ImportSession, error) {
	var session models.ImportSession
	err := s.db.WithContext(ctx).Preload("CreatedBy").First(&session, id).Error
	return &session, err
}

// ListSessions 导入会话列表（分页）
func (s *ImportService) ListSessions(ctx context.Context, kind string, page, pageSize int) ([]*models.ImportSession, int64, error) {
	var sessions []*models.ImportSession
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ImportSession{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&sessions).Error
	return sessions, total, err
}

// ListGeneratedAccounts 会话生成的账号（初始密码只在这里可见）
func (s *ImportService) ListGeneratedAccounts(ctx context.Context, sessionID uint) ([]*models.GeneratedAccount, error) {
	var accounts []*models.GeneratedAccount
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Preload("User").Find(&accounts).Error
	return accounts, err
}

// CleanupOldSessions 删除超过保留期的导入会话及生成账号记录
func (s *ImportService) CleanupOldSessions(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	// 运维清理跨所有学校执行，显式关闭租户过滤
	var sessionIDs []uint
	if err := tenantdb.AllTenants(s.db.Model(&models.ImportSession{})).
		Where("created_at < ?", cutoff).
		Pluck("id", &sessionIDs).Error; err != nil {
		return err
	}
	if len(sessionIDs) == 0 {
		return nil
	}

	if err := tenantdb.AllTenants(s.db).
		Where("session_id IN ?", sessionIDs).
		Delete(&models.GeneratedAccount{}).Error; err != nil {
		return err
	}
	result := tenantdb.AllTenants(s.db).
		Where("id IN ?", sessionIDs).
		Delete(&models.ImportSession{})
	if result.Error != nil {
		return result.Error
	}

	s.log.Infof("清理导入会话 %d 条", result.RowsAffected)
	return nil
}

// ========== 后台处理 ==========

func (s *ImportService) process(ctx context.Context, sessionID uint, kind string, data []byte) {
	s.setStatus(ctx, sessionID, models.ImportStatusRunning, nil)
	s.publish(ImportProgress{SessionID: sessionID, Status: models.ImportStatusRunning})

	rows, err := parseCSV(data)
	if err != nil {
		s.finish(ctx, sessionID, models.ImportStatusError, &ImportResults{
			Errors: []ImportRowError{{Line: 0, Message: err.Error()}},
		})
		return
	}

	results := &ImportResults{Total: len(rows)}
	for i, row := range rows {
		line := i + 2 // 首行是表头
		var rowErr error
		switch kind {
		case models.ImportKindPersonnel:
			rowErr = s.importPersonnelRow(ctx, sessionID, row)
		case models.ImportKindClasses:
			rowErr = s.importClassRow(ctx, row)
		case models.ImportKindStudents:
			rowErr = s.importStudentRow(ctx, row)
		}

		if rowErr != nil {
			results.Errors = append(results.Errors, ImportRowError{Line: line, Message: rowErr.Error()})
		} else {
			results.Created++
		}

		s.publish(ImportProgress{
			SessionID: sessionID,
			Status:    models.ImportStatusRunning,
			Processed: i + 1,
			Total:     len(rows),
		})
	}

	status := models.ImportStatusDone
	if results.Created == 0 && len(results.Errors) > 0 {
		status = models.ImportStatusError
	}
	s.finish(ctx, sessionID, status, results)
}

func (s *ImportService) setStatus(ctx context.Context, sessionID uint, status string, results *ImportResults) {
	updates := map[string]interface{}{"status": status}
	if results != nil {
		if data, err := json.Marshal(results); err == nil {
			updates["results"] = datatypes.JSON(data)
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		s.log.Errorf("更新导入会话状态失败 session=%d: %v", sessionID, err)
	}
}

func (s *ImportService) finish(ctx context.Context, sessionID uint, status string, results *ImportResults) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": &now,
	}
	if data, err := json.Marshal(results); err == nil {
		updates["results"] = datatypes.JSON(data)
	}
	if err := s.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		s.log.Errorf("完成导入会话失败 session=%d: %v", sessionID, err)
	}

	s.publish(ImportProgress{SessionID: sessionID, Status: status})

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"status":     status,
	}).Info("导入会话处理完成")
}

// importPersonnelRow 处理人员行: email;姓名;角色;电话(可选)
func (s *ImportService) importPersonnelRow(ctx context.Context, sessionID uint, row []string) error {
	if len(row) < 3 {
		return fmt.Errorf("列数不足，需要 email、姓名、角色")
	}
	email := strings.TrimSpace(row[0])
	name := strings.TrimSpace(row[1])
	role := strings.ToLower(strings.TrimSpace(row[2]))

	if email == "" || name == "" {
		return fmt.Errorf("email和姓名不能为空")
	}
	switch role {
	case models.RoleTeacher, models.RoleCPE, models.RoleParent:
	default:
		return fmt.Errorf("无效的角色: %s", role)
	}

	var count int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return fmt.Errorf("邮箱已存在: %s", email)
	}

	tenant, _ := tenantctx.FromContext(ctx)

	password, err := generatePassword(12)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:    email,
		Name:     name,
		Role:     role,
		Status:   models.UserStatusActive,
		TenantID: &tenant.ID,
	}
	if len(row) > 3 {
		if phone := strings.TrimSpace(row[3]); phone != "" {
			user.Phone = &phone
		}
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		account := &models.GeneratedAccount{
			SessionID:       sessionID,
			UserID:          user.ID,
			InitialPassword: password,
		}
		return tx.Create(account).Error
	})
}

// importClassRow 处理班级行: 名称;年级;学年
func (s *ImportService) importClassRow(ctx context.Context, row []string) error {
	if len(row) < 3 {
		return fmt.Errorf("列数不足，需要 名称、年级、学年")
	}
	name := strings.TrimSpace(row[0])
	level := strings.TrimSpace(row[1])
	schoolYear := strings.TrimSpace(row[2])

	if name == "" || level == "" || schoolYear == "" {
		return fmt.Errorf("名称、年级和学年不能为空")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SchoolClass{}).
		Where("name = ? AND school_year = ?", name, schoolYear).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("班级已存在: %s (%s)", name, schoolYear)
	}

	class := &models.SchoolClass{
		Name:       name,
		Level:      level,
		SchoolYear: schoolYear,
		Active:     true,
	}
	return s.db.WithContext(ctx).Create(class).Error
}

// importStudentRow 处理学生行: 名;姓;出生日期(可选);班级名(可选)
func (s *ImportService) importStudentRow(ctx context.Context, row []string) error {
	if len(row) < 2 {
		return fmt.Errorf("列数不足，需要 名、姓")
	}
	firstName := strings.TrimSpace(row[0])
	lastName := strings.TrimSpace(row[1])
	if firstName == "" || lastName == "" {
		return fmt.Errorf("学生姓名不能为空")
	}

	student := &models.Student{
		FirstName: firstName,
		LastName:  lastName,
	}

	if len(row) > 2 {
		if raw := strings.TrimSpace(row[2]); raw != "" {
			birthDate, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return fmt.Errorf("出生日期格式无效: %s", raw)
			}
			student.BirthDate = &birthDate
		}
	}

	if len(row) > 3 {
		if className := strings.TrimSpace(row[3]); className != "" {
			var class models.SchoolClass
			err := s.db.WithContext(ctx).
				Where("name = ?", className).
				Order("school_year DESC").
				First(&class).Error
			if err != nil {
				return fmt.Errorf("班级不存在: %s", className)
			}
			student.ClassID = &class.ID
		}
	}

	return s.db.WithContext(ctx).Create(student).Error
}

// ========== CSV解析 ==========

// parseCSV 解析CSV内容并返回数据行（跳过表头）
// 分隔符从首行探测：分号多于逗号时按分号解析
func parseCSV(data []byte) ([][]string, error) {
	// 去掉UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV解析失败: %v", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("文件没有数据行")
	}

	return records[1:], nil
}

// 初始密码字符集，去掉易混淆字符
const passwordCharset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatePassword 生成随机初始密码
func generatePassword(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = passwordCharset[n.Int64()]
	}
	return string(result), nil
}
