// Package auth implements credential verification and HS256 bearer token
// issue/verify for the robot control API.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 10 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Verifier validates a username/password pair and returns the subject to
// embed in issued tokens. Implementations may back this with any credential
// store; the reference policy is StaticVerifier.
type Verifier interface {
	Verify(username, password string) (string, error)
}

// StaticVerifier accepts exactly one configured pair.
type StaticVerifier struct {
	Username string
	Password string
}

func (v StaticVerifier) Verify(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.Password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return username, nil
}

// Issuer mints HS256-signed bearer tokens. The secret is injected
// configuration, loaded once at startup and never rotated while serving.
type Issuer struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// Issue returns a compact JWT asserting the subject, issued now and expiring
// after the configured TTL.
func (i Issuer) Issue(subject string) (string, error) {
	if strings.TrimSpace(i.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issued := now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticator verifies presented bearer tokens against the same static
// secret. It fails closed on anything malformed and distinguishes expiry
// from other failures. Issuer and audience are deliberately not checked.
type Authenticator struct {
	Secret string
	Now    func() time.Time
}

// Authenticate returns the token's subject, or ErrTokenExpired /
// ErrInvalidToken.
func (a Authenticator) Authenticate(tokenString string) (string, error) {
	if strings.TrimSpace(a.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(a.Now))
	}
	parser := jwt.NewParser(opts...)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
