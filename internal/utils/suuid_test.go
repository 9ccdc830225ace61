package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID2SUUID_Length(t *testing.T) {
	u := uuid.NewString()

	s, err := UUID2SUUID(u)

	require.NoError(t, err)
	assert.Len(t, s, 22)
}

func TestSUUIDRoundTrip(t *testing.T) {
	for i := 0; i < 20; i++ {
		u := uuid.NewString()

		s, err := UUID2SUUID(u)
		require.NoError(t, err)

		back, err := SUUID2UUID(s)
		require.NoError(t, err)
		assert.Equal(t, u, back)
	}
}

func TestUUID2SUUID_InvalidUUID(t *testing.T) {
	_, err := UUID2SUUID("not-a-uuid")
	assert.Error(t, err)
}

func TestSUUID2UUID_WrongLength(t *testing.T) {
	_, err := SUUID2UUID("short")
	assert.Error(t, err)
}

func TestSUUID2UUID_InvalidChars(t *testing.T) {
	_, err := SUUID2UUID("!!!!!!!!!!!!!!!!!!!!!!")
	assert.Error(t, err)
}
