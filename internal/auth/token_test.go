package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	meta, signed, err := tm.GenerateToken("staff-1", domain.StaffRoleManager)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", meta.SubjectID)
	assert.Equal(t, domain.StaffRoleManager, meta.Role)
	assert.NotEmpty(t, meta.ID)
	assert.InDelta(t, 30*time.Minute, meta.Remaining(time.Now()), float64(5*time.Second))
	assert.Zero(t, meta.Remaining(meta.ExpiresAt.Add(time.Second)))
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), meta.ExpiresAt, 5*time.Second)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.StaffID())
	assert.Equal(t, domain.StaffRoleManager, claims.Role)
}

func TestParseTokenRejectsOtherSecretAndExpired(t *testing.T) {
	_, signed, err := NewTokenManager("a", 30).GenerateToken("staff-1", domain.StaffRoleHR)
	require.NoError(t, err)
	_, err = NewTokenManager("b", 30).ParseToken(signed)
	assert.Error(t, err)

	expired := NewTokenManager("a", 30)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	_, signed, err = expired.GenerateToken("staff-1", domain.StaffRoleHR)
	require.NoError(t, err)
	_, err = NewTokenManager("a", 30).ParseToken(signed)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
	assert.Error(t, ComparePassword("", "s3cret!"))

	hash, err = HashPassword("s3cret!", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.ErrorIs(t, CheckPasswordPolicy("short"), ErrPasswordTooShort)
	assert.NoError(t, CheckPasswordPolicy("contraseña"))
	assert.ErrorIs(t, CheckPasswordPolicy(strings.Repeat("a", 73)), ErrPasswordTooLong)
}
