package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTenantCode(t *testing.T) {
	valid := []string{"ab", "etb001", "ETB_01", "0123456789"}
	for _, code := range valid {
		assert.True(t, IsValidTenantCode(code), "code=%q", code)
	}

	invalid := []string{"", "a", "01234567890", "with space", "etb-001", "école", "etb/1"}
	for _, code := range invalid {
		assert.False(t, IsValidTenantCode(code), "code=%q", code)
	}
}

func TestTenantBaseURL(t *testing.T) {
	tenant := &Tenant{Code: "etb001"}
	assert.Equal(t, "/etb001/", tenant.BaseURL())
}

func TestInvitationValidity(t *testing.T) {
	invitation := &TenantInvitation{ExpiresAt: time.Now().Add(time.Hour)}
	assert.True(t, invitation.IsValid())

	invitation.MarkUsed(7)
	assert.True(t, invitation.Used)
	assert.NotNil(t, invitation.UsedAt)
	assert.Equal(t, uint(7), *invitation.UserCreatedID)
	assert.False(t, invitation.IsValid())

	expired := &TenantInvitation{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, expired.IsExpired())
	assert.False(t, expired.IsValid())
}

func TestAbsenceJustifyOneWay(t *testing.T) {
	absence := &Absence{Kind: AbsenceKindAbsent}
	assert.False(t, absence.Justified)

	absence.Justify(3, "病假")
	assert.True(t, absence.Justified)
	assert.Equal(t, "病假", absence.JustifyReason)
	assert.Equal(t, uint(3), *absence.JustifiedByID)
	assert.NotNil(t, absence.JustifiedAt)
}
