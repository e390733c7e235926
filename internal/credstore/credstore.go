// Package credstore keeps the gym account password in the OS keyring.
package credstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "gym-sniper"

var ErrNotFound = errors.New("no password stored")

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Store reads and writes passwords keyed by account email.
type Store struct {
	Service string
}

func New() *Store { return &Store{Service: service} }

func (s *Store) Set(email, password string) error {
	if email == "" {
		return fmt.Errorf("credstore: email required")
	}
	if err := keyringSet(s.Service, email, password); err != nil {
		return fmt.Errorf("credstore: save password for %s: %w", email, err)
	}
	return nil
}

func (s *Store) Get(email string) (string, error) {
	pw, err := keyringGet(s.Service, email)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore: read password for %s: %w", email, err)
	}
	return pw, nil
}

func (s *Store) Delete(email string) error {
	err := keyringDelete(s.Service, email)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
