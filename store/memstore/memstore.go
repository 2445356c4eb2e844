// Package memstore is the in-memory reference implementation of the
// authkit persistence contracts. It backs the package tests and the
// zero-dependency development mode of the reference server; data does not
// survive a restart.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/authkit-go/authkit"
)

// Store holds users and refresh tokens behind a single mutex, which makes
// every operation, including bulk revocation, atomic by construction.
// Access it through the [Store.Users] and [Store.Tokens] views.
type Store struct {
	mu sync.RWMutex

	nextUserID  int64
	nextTokenID int64

	usersByID     map[int64]authkit.User
	userIDByName  map[string]int64
	userIDByEmail map[string]int64

	tokens       map[string]authkit.RefreshToken
	tokensByUser map[int64][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		usersByID:     make(map[int64]authkit.User),
		userIDByName:  make(map[string]int64),
		userIDByEmail: make(map[string]int64),
		tokens:        make(map[string]authkit.RefreshToken),
		tokensByUser:  make(map[int64][]string),
	}
}

// Users returns the identity view implementing authkit.UserStore.
func (s *Store) Users() *UserStore {
	return &UserStore{store: s}
}

// Tokens returns the refresh-token view implementing authkit.TokenStore.
func (s *Store) Tokens() *TokenStore {
	return &TokenStore{store: s}
}

// UserStore is the users view of a [Store].
type UserStore struct {
	store *Store
}

func (u *UserStore) FindByUsername(_ context.Context, username string) (*authkit.User, error) {
	s := u.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByName[normalize(username)]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (u *UserStore) FindByEmail(_ context.Context, email string) (*authkit.User, error) {
	s := u.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[normalize(email)]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (u *UserStore) FindByID(_ context.Context, id int64) (*authkit.User, error) {
	s := u.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	return &user, nil
}

func (u *UserStore) Insert(_ context.Context, user *authkit.User) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	name := normalize(user.Username)
	email := normalize(user.Email)
	if _, taken := s.userIDByName[name]; taken {
		return authkit.ErrDuplicateUser
	}
	if _, taken := s.userIDByEmail[email]; taken {
		return authkit.ErrDuplicateUser
	}

	s.nextUserID++
	user.ID = s.nextUserID
	s.usersByID[user.ID] = *user
	s.userIDByName[name] = user.ID
	s.userIDByEmail[email] = user.ID
	return nil
}

// TokenStore is the refresh-token view of a [Store]. Revoked and expired
// records are kept forever; nothing here deletes.
type TokenStore struct {
	store *Store
}

func (t *TokenStore) Find(_ context.Context, token string) (*authkit.RefreshToken, error) {
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[token]
	if !ok {
		return nil, authkit.ErrNotFound
	}
	return &record, nil
}

func (t *TokenStore) Insert(_ context.Context, record *authkit.RefreshToken) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTokenID++
	record.ID = s.nextTokenID
	s.tokens[record.Token] = *record
	s.tokensByUser[record.UserID] = append(s.tokensByUser[record.UserID], record.Token)
	return nil
}

func (t *TokenStore) MarkRevoked(_ context.Context, token string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return authkit.ErrNotFound
	}
	record.Revoked = true
	s.tokens[token] = record
	return nil
}

func (t *TokenStore) RevokeAllForUser(_ context.Context, userID int64) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, value := range s.tokensByUser[userID] {
		record := s.tokens[value]
		record.Revoked = true
		s.tokens[value] = record
	}
	return nil
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
