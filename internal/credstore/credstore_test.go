package credstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestRoundTrip(t *testing.T) {
	keyring.MockInit()
	s := New()

	require.NoError(t, s.Set("ada@example.com", "hunter2"))
	pw, err := s.Get("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	require.NoError(t, s.Delete("ada@example.com"))
	_, err = s.Get("ada@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("ada@example.com"), ErrNotFound)
}

func TestSetRequiresEmail(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, New().Set("", "x"))
}

func TestKeyringFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	_, err := New().Get("ada@example.com")
	assert.ErrorContains(t, err, "dbus unavailable")
	assert.False(t, errors.Is(err, ErrNotFound))
}
