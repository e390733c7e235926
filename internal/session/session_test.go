package session

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-sniper/internal/booking"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestSaveLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewStore(fsys, "/state/session", secret)
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.Save(booking.Session{Token: "jwt", ExpiresAt: exp}))

	raw, err := afero.ReadFile(fsys, "/state/session")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "jwt")

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "jwt", got.Token)
	assert.True(t, exp.Equal(got.ExpiresAt))
}

func TestLoad_Missing(t *testing.T) {
	s, err := NewStore(afero.NewMemMapFs(), "/session", secret)
	require.NoError(t, err)
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, s.Clear())
}

func TestLoad_WrongSecret(t *testing.T) {
	fsys := afero.NewMemMapFs()
	a, _ := NewStore(fsys, "/session", secret)
	require.NoError(t, a.Save(booking.Session{Token: "jwt", ExpiresAt: time.Now().Add(time.Hour)}))

	b, _ := NewStore(fsys, "/session", []byte("another-secret-of-32-bytes-000000"))
	_, err := b.Load()
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestClear(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, _ := NewStore(fsys, "/session", secret)
	require.NoError(t, s.Save(booking.Session{Token: "jwt"}))
	require.NoError(t, s.Clear())
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDeriveKeys(t *testing.T) {
	h1, b1, err := DeriveKeys(secret)
	require.NoError(t, err)
	h2, b2, _ := DeriveKeys(secret)
	assert.Equal(t, h1, h2)
	assert.Equal(t, b1, b2)
	assert.NotEqual(t, h1, b1)
	assert.Len(t, h1, 32)

	_, _, err = DeriveKeys([]byte("short"))
	assert.Error(t, err)
}
