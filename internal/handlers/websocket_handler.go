package handlers

import (
	"net/http"
	"strconv"
	"time"

	"xamu/internal/models"
	"xamu/internal/services"
	"xamu/internal/tenantctx"
	"xamu/pkg/config"
	"xamu/pkg/jwt"
	"xamu/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 导入进度的WebSocket处理器
// /ws/ 路径免租户解析，这里从token声明恢复学校归属
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	log           *logrus.Logger
	jwtManager    *jwt.JWTManager
	tenantService *services.TenantService
	importService *services.ImportService
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(tenantService *services.TenantService, importService *services.ImportService) *WebSocketHandler {
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:           logger.GetLogger(),
		jwtManager:    jwt.GetJWTManager(),
		tenantService: tenantService,
		importService: importService,
	}
}

// ImportProgress 订阅导入会话的进度
// GET /ws/imports/:id?token=<jwt>
func (h *WebSocketHandler) ImportProgress(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "会话ID格式错误"})
		return
	}

	// WebSocket不支持自定义header，token走查询参数
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的令牌"})
		return
	}
	if claims.IsPlatformAdmin || claims.TenantCode == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "只有学校用户可以订阅导入进度"})
		return
	}

	tenant, err := h.tenantService.GetByCode(c.Request.Context(), claims.TenantCode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "学校不存在"})
		return
	}

	// 会话按当前学校过滤，其他学校的会话对该用户不可见
	ctx := tenantctx.WithTenant(c.Request.Context(), tenant)
	session, err := h.importService.GetSession(ctx, uint(sessionID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "导入会话不存在"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("升级WebSocket连接失败")
		return
	}
	defer conn.Close()

	h.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    claims.UserID,
	}).Info("导入进度订阅建立")

	// 先推一次当前状态，避免订阅晚于处理完成时收不到任何事件
	initial := services.ImportProgress{SessionID: session.ID, Status: session.Status}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}
	if session.Status == models.ImportStatusDone || session.Status == models.ImportStatusError {
		return
	}

	progressCh := h.importService.Subscribe(session.ID)
	defer h.importService.Unsubscribe(session.ID, progressCh)

	// 读goroutine只用来感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(progress); err != nil {
				return
			}
			if progress.Status == models.ImportStatusDone || progress.Status == models.ImportStatusError {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
