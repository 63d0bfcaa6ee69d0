package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/model"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "user-1", model.RoleTeacher, 15)
	require.NoError(t, err)

	id, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: "user-1", Role: model.RoleTeacher}, id)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	good, err := NewAccessToken("s3cret", "user-1", model.RoleStudent, 15)
	require.NoError(t, err)
	expired, err := NewAccessToken("s3cret", "user-1", model.RoleStudent, -1)
	require.NoError(t, err)
	badRole, err := NewAccessToken("s3cret", "user-1", "OWNER", 15)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "role": "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"s3cret", expired.Token},
		"unknown role": {"s3cret", badRole.Token},
		"alg none":     {"s3cret", none},
		"garbage":      {"s3cret", "not-a-jwt"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tt.secret, tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshToken_HashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "battery staple"))
}
