package services

import (
	"sync"
	"time"

	"xamu/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// 导入会话保留期，到期后连同生成账号记录一起清理
const importSessionRetention = 90 * 24 * time.Hour

// CleanupScheduler 后台清理调度器
// 定时清理过期邀请和超过保留期的导入会话
type CleanupScheduler struct {
	cron              *cron.Cron
	invitationService *InvitationService
	importService     *ImportService
	mu                sync.Mutex
	running           bool
}

// NewCleanupScheduler 创建清理调度器
func NewCleanupScheduler(db *gorm.DB, importService *ImportService) *CleanupScheduler {
	return &CleanupScheduler{
		cron:              cron.New(),
		invitationService: NewInvitationServiceWith(db),
		importService:     importService,
	}
}

// Start 启动调度器
func (s *CleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	log := logger.GetLogger()

	// 每小时清理过期邀请
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.invitationService.CleanupExpiredInvitations(); err != nil {
			log.WithError(err).Error("清理过期邀请失败")
		}
	}); err != nil {
		return err
	}

	// 每天凌晨清理过保留期的导入会话
	if _, err := s.cron.AddFunc("0 3 * * *", func() {
		if err := s.importService.CleanupOldSessions(importSessionRetention); err != nil {
			log.WithError(err).Error("清理导入会话失败")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	log.Info("清理调度器启动成功")
	return nil
}

// Stop 停止调度器
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	logger.GetLogger().Info("清理调度器已停止")
}
