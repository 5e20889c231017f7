package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "MANAGER")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := JwtValidate(token)
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claim, ok := parsed.Claims.(*JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, 42, claim.ID)
	assert.Equal(t, "MANAGER", claim.Role)
}

func TestJwtValidateRejectsGarbage(t *testing.T) {
	_, err := JwtValidate("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hashed, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(string(hashed), "hunter2"))
	assert.Error(t, ComparePassword(string(hashed), "wrong"))
}
