package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsFor(t *testing.T, query string) *PageParams {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return ParsePageParams(c)
}

func TestParsePageParams(t *testing.T) {
	p := paramsFor(t, "page=3&page_size=20")
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 40, p.Offset())

	// 缺省与非法值回落默认
	p = paramsFor(t, "")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)

	p = paramsFor(t, "page=abc&page_size=-5")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)

	// page_size封顶
	p = paramsFor(t, "page_size=9999")
	assert.Equal(t, 100, p.PageSize)
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(2, 10, 25)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext)
	assert.True(t, info.HasPrev)

	info = NewPageInfo(1, 10, 0)
	assert.Equal(t, 0, info.TotalPages)
	assert.False(t, info.HasNext)
	assert.False(t, info.HasPrev)
}
