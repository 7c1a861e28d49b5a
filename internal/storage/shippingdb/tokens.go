package shippingdb

import (
	"encoding/base64"
	"strings"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/google/uuid"
)

// Authenticate checks the credential store and issues a fresh token for username.
// Any token the user already holds is dropped in the same critical section that
// installs the new one. Failures of any kind return models.InvalidTokenInfo.
func (s *Store) Authenticate(username, password string) models.TokenInfo {
	if username == "" || password == "" {
		return models.InvalidTokenInfo
	}
	if !s.checkCredentials(username, password) {
		return models.InvalidTokenInfo
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return models.InvalidTokenInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.userToken[username]; ok {
		s.dropLocked(old, username)
	}

	expiry := s.now().Add(s.tokenTTL)
	s.tokenUser[id] = username
	s.tokenExpiry[id] = expiry
	s.userToken[username] = id

	return models.TokenInfo{
		Token:  encodeToken(id),
		Expiry: expiry,
	}
}

// ResolveToken returns the username owning token. Malformed, unknown and
// expired tokens all resolve to ("", false); an expired token is purged.
func (s *Store) ResolveToken(token string) (string, bool) {
	id, ok := decodeToken(token)
	if !ok {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokenExpiry[id]
	if !ok {
		return "", false
	}
	username := s.tokenUser[id]
	if !expiry.After(s.now()) {
		s.dropLocked(id, username)
		return "", false
	}
	return username, true
}

// Invalidate drops the token held by username, expired or not.
// It reports whether the user had one.
func (s *Store) Invalidate(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userToken[username]
	if !ok {
		return false
	}
	s.dropLocked(id, username)
	return true
}

// dropLocked removes a token from all three maps. Caller holds s.mu.
func (s *Store) dropLocked(id uuid.UUID, username string) {
	delete(s.tokenUser, id)
	delete(s.tokenExpiry, id)
	// The reverse entry may already point at a newer token.
	if cur, ok := s.userToken[username]; ok && cur == id {
		delete(s.userToken, username)
	}
}

func encodeToken(id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// decodeToken accepts the padded form that is issued (24 chars) and the same
// value without padding (22 chars).
func decodeToken(token string) (uuid.UUID, bool) {
	if token == "" {
		return uuid.Nil, false
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(token, "=") {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(token)
	if err != nil || len(b) != len(uuid.Nil) {
		return uuid.Nil, false
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, true
}
