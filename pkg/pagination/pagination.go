package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// 列表接口统一的分页上下限
const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageParams 请求里的分页参数，越界值在解析时收敛到合法范围
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// PageInfo 响应里的分页元信息
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// ParsePageParams 从query解析page/page_size
// 非数字、非正数回落默认值，page_size封顶
func ParsePageParams(c *gin.Context) *PageParams {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &PageParams{Page: page, PageSize: pageSize}
}

// NewPageInfo 按总记录数计算分页元信息
func NewPageInfo(page, pageSize int, total int64) *PageInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Offset 转成数据库查询的偏移量
func (p *PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
