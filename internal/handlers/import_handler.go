package handlers

import (
	"errors"
	"io"

	"xamu/internal/services"
	"xamu/pkg/pagination"
	"xamu/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 上传文件大小上限
const maxImportFileSize = 5 << 20

// ImportHandler CSV导入处理器
type ImportHandler struct {
	service *services.ImportService
}

func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// Upload 上传CSV并启动导入
// multipart字段: file=CSV文件, kind=personnel|classes|students
func (h *ImportHandler) Upload(c *gin.Context) {
	kind := c.PostForm("kind")
	if !h.service.IsValidKind(kind) {
		response.BadRequest(c, "无效的导入类型")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "缺少上传文件")
		return
	}
	if fileHeader.Size > maxImportFileSize {
		response.BadRequest(c, "文件超过大小限制")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, "读取文件失败")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportFileSize+1))
	if err != nil {
		response.ServerError(c, "读取文件失败")
		return
	}

	userID := c.GetUint("user_id")
	session, err := h.service.StartImport(c.Request.Context(), kind, fileHeader.Filename, data, userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, session)
}

// ListSessions 导入会话列表
func (h *ImportHandler) ListSessions(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	sessions, total, err := h.service.ListSessions(c.Request.Context(), c.Query("kind"), pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, sessions, pageInfo)
}

// GetSession 获取导入会话详情（含逐行结果）
func (h *ImportHandler) GetSession(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "导入会话不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, session)
}

// ListGeneratedAccounts 会话生成的账号及初始密码
func (h *ImportHandler) ListGeneratedAccounts(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	// 确认会话属于当前学校
	if _, err := h.service.GetSession(c.Request.Context(), id); err != nil {
		response.NotFound(c, "导入会话不存在")
		return
	}

	accounts, err := h.service.ListGeneratedAccounts(c.Request.Context(), id)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, accounts)
}
