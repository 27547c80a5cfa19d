// Package auth validates the credential a client presents when it opens a
// telemetry connection.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Sentinel kinds for authentication errors.
var (
	ErrRejected = errors.New("credential rejected")
)

// TokenParam is the query parameter carrying the credential.
const TokenParam = "token"

// Gate compares presented credentials against the configured shared secret.
type Gate struct {
	secret []byte
}

// NewGate builds a gate for secret. An empty secret rejects everything.
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Validate returns nil when presented equals the secret exactly.
func (g *Gate) Validate(presented string) error {
	if len(g.secret) == 0 || presented == "" {
		return ErrRejected
	}
	if subtle.ConstantTimeCompare([]byte(presented), g.secret) != 1 {
		return ErrRejected
	}
	return nil
}

// Credential extracts the credential from the handshake request: the token
// query parameter first, then an Authorization bearer header.
func Credential(r *http.Request) string {
	if tok := r.URL.Query().Get(TokenParam); tok != "" {
		return tok
	}
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
