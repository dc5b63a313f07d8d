package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidSession covers every reason a session token is rejected:
// malformed, badly signed, expired or carrying an unusable subject.
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the signed payload of the session cookie.  The subject
// carries the user id; nothing else about the user is trusted from it.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionToken represents a signed session token along with its expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// SessionIssuer signs and verifies HS256 session tokens bound to a user id.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer builds an issuer.  The secret length is validated once
// at startup by config.Load.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

// Issue builds and signs a token for userID.
func (s *SessionIssuer) Issue(userID uint64) (SessionToken, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// Parse verifies signature and expiry and returns the user id in the
// subject.  Any failure collapses to ErrInvalidSession.
func (s *SessionIssuer) Parse(raw string) (uint64, error) {
	if raw == "" {
		return 0, ErrInvalidSession
	}
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return 0, ErrInvalidSession
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidSession
	}
	return id, nil
}
