package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong password"), ErrInvalidCredentials)
}

func TestHashPasswordRejectsWeak(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate(42, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestJWTVerifyRejects(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		_, err := manager.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("different-secret", time.Hour)
		token, err := other.Generate(42, "alice@example.com")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Hour)
		token, err := expired.Generate(42, "alice@example.com")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
