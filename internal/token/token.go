package token // package token mints and verifies the access/refresh JWT pair

import (
	"crypto/sha256" // SHA-256 hashing for persisted token slots
	"encoding/hex"  // hex encoding of digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/iliyamo/tour-booking-api/internal/config"
	"github.com/iliyamo/tour-booking-api/internal/model"
)

// ErrInvalid is returned for any token that fails signature, expiry or
// claim-shape checks.  Callers treat every parse failure the same way, so a
// single sentinel keeps the middleware pipeline simple.
var ErrInvalid = errors.New("invalid or expired token")

// Token is a signed JWT string together with its expiry.
type Token struct {
	Value string    // the serialized JWT
	Exp   time.Time // UTC expiration time
}

// Session is the identity extracted from a verified token.  Role and Name
// are only populated for access tokens; refresh tokens carry the minimal
// id+email pair.
type Session struct {
	UserID   uint64
	Email    string
	Role     string
	IssuedAt time.Time
}

// Issuer signs access and refresh tokens with distinct secrets and expiry
// policies.  Both secrets are required configuration; Load() already refuses
// to start without them, so construction cannot fail at runtime.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewIssuer builds an Issuer from the loaded configuration.
func NewIssuer(cfg config.Config) Issuer {
	return Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     time.Duration(cfg.AccessTTLMin) * time.Minute,
		refreshTTL:    time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
	}
}

// RefreshTTL exposes the refresh lifetime for cookie Max-Age and the
// persisted expiry column.
func (i Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Access mints a short-lived HS256 token carrying a snapshot of the user:
// subject, name, email, photo and role.
func (i Issuer) Access(u model.User) (Token, error) {
	now := time.Now().UTC()
	exp := now.Add(i.accessTTL)
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"name":  u.Name,
		"email": u.Email,
		"photo": u.Photo,
		"role":  u.Role,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, Exp: exp}, nil
}

// Refresh mints a long-lived HS256 token with minimal identity (id, email),
// signed with the refresh secret.  The caller persists Hash() of the raw
// string as the user's single active session slot.
func (i Issuer) Refresh(u model.User) (Token, error) {
	now := time.Now().UTC()
	exp := now.Add(i.refreshTTL)
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, Exp: exp}, nil
}

// ParseAccess verifies raw against the access secret.
func (i Issuer) ParseAccess(raw string) (Session, error) {
	return parse(raw, i.accessSecret)
}

// ParseRefresh verifies raw against the refresh secret.
func (i Issuer) ParseRefresh(raw string) (Session, error) {
	return parse(raw, i.refreshSecret)
}

// parse validates signature and expiry with the given secret and extracts
// the session claims.  Only HMAC-signed tokens are accepted; anything else
// is ErrInvalid.
func parse(raw string, secret []byte) (Session, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Session{}, ErrInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalid
	}
	var s Session
	switch sub := claims["sub"].(type) {
	case float64:
		s.UserID = uint64(sub)
	default:
		return Session{}, ErrInvalid
	}
	if email, ok := claims["email"].(string); ok {
		s.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		s.Role = role
	}
	if iat, ok := claims["iat"].(float64); ok {
		s.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	return s, nil
}

// Hash returns the SHA-256 of a raw token as a hex string.  Only hashes are
// persisted, so a leaked database row cannot be replayed as a session.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
