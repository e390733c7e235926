// Package session keeps the vendor session token on disk between CLI runs,
// signed and encrypted with keys derived from SESSION_SECRET.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/spf13/afero"
	"golang.org/x/crypto/hkdf"

	"github.com/example/gym-sniper/internal/booking"
)

const (
	cookieName = "gymsniper_session"
	maxAge     = 14 * 24 * time.Hour
)

// ErrNoSession means nothing usable is stored.
var ErrNoSession = errors.New("no stored session")

type record struct {
	Token     string
	ExpiresAt int64
}

type Store struct {
	sc   *securecookie.SecureCookie
	fs   afero.Fs
	path string
}

// DeriveKeys expands secret into a 32-byte hash key and a 32-byte block key.
func DeriveKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	if len(secret) < 16 {
		return nil, nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	hashKey = make([]byte, 32)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("gym-sniper session hash")), hashKey); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("gym-sniper session block")), blockKey); err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

func NewStore(fsys afero.Fs, path string, secret []byte) (*Store, error) {
	hashKey, blockKey, err := DeriveKeys(secret)
	if err != nil {
		return nil, err
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	return &Store{sc: sc, fs: fsys, path: path}, nil
}

func (s *Store) Save(sess booking.Session) error {
	encoded, err := s.sc.Encode(cookieName, record{Token: sess.Token, ExpiresAt: sess.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, []byte(encoded), 0o600)
}

// Load returns the stored session. A missing, tampered or expired file is
// ErrNoSession.
func (s *Store) Load() (booking.Session, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return booking.Session{}, ErrNoSession
	}
	if err != nil {
		return booking.Session{}, err
	}
	var rec record
	if err := s.sc.Decode(cookieName, strings.TrimSpace(string(b)), &rec); err != nil {
		return booking.Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return booking.Session{Token: rec.Token, ExpiresAt: time.Unix(rec.ExpiresAt, 0)}, nil
}

// Clear removes the stored session.
func (s *Store) Clear() error {
	err := s.fs.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
