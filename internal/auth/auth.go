// Package auth guards the ops surface with a shared bearer token.
//
// The data path carries no authentication at all; this covers only the
// diagnostics HTTP endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an ops request token.
type Validator interface {
	Validate(token string) error
}

// StaticToken validates against a single shared token from the config
// file. An empty stored token denies everything; callers that want an open
// surface skip the check entirely instead.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FromHeader extracts the token from an Authorization header value.
// Only the Bearer scheme is recognized.
func FromHeader(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
