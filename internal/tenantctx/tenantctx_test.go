package tenantctx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"xamu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTenant(id uint, code string) *models.Tenant {
	tenant := &models.Tenant{Code: code, Name: "学校" + code, Status: models.TenantStatusActive}
	tenant.ID = id
	return tenant
}

func TestWithTenantAndFromContext(t *testing.T) {
	tenant := testTenant(1, "etb001")
	ctx := WithTenant(context.Background(), tenant)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tenant, got)

	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestFromContextEmpty(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = IDFromContext(context.Background())
	assert.False(t, ok)
}

func TestMustFromContextPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})

	ctx := WithTenant(context.Background(), testTenant(1, "etb001"))
	assert.NotPanics(t, func() {
		got := MustFromContext(ctx)
		assert.Equal(t, uint(1), got.ID)
	})
}

func TestNestedTenantShadowsOuter(t *testing.T) {
	outer := WithTenant(context.Background(), testTenant(1, "etb001"))
	inner := WithTenant(outer, testTenant(2, "etb002"))

	got, ok := FromContext(inner)
	require.True(t, ok)
	assert.Equal(t, uint(2), got.ID)

	// 外层context不受内层绑定影响
	got, ok = FromContext(outer)
	require.True(t, ok)
	assert.Equal(t, uint(1), got.ID)
}

func TestRunWithTenant(t *testing.T) {
	tenant := testTenant(3, "etb003")

	err := RunWithTenant(context.Background(), tenant, func(ctx context.Context) error {
		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, uint(3), got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestRunWithTenantPropagatesError(t *testing.T) {
	wantErr := errors.New("导入失败")
	err := RunWithTenant(context.Background(), testTenant(1, "etb001"), func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestRunWithTenantRestoresOuter(t *testing.T) {
	outer := WithTenant(context.Background(), testTenant(1, "etb001"))

	err := RunWithTenant(outer, testTenant(2, "etb002"), func(ctx context.Context) error {
		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, uint(2), got.ID)
		return nil
	})
	require.NoError(t, err)

	// fn返回后外层context的租户不变
	got, ok := FromContext(outer)
	require.True(t, ok)
	assert.Equal(t, uint(1), got.ID)
}

func TestConcurrentContextsIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for i := uint(1); i <= 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			ctx := WithTenant(context.Background(), testTenant(id, "etb001"))
			got, ok := IDFromContext(ctx)
			assert.True(t, ok)
			assert.Equal(t, id, got)
		}(i)
	}
	wg.Wait()
}
