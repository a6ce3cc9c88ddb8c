package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT and the moment it stops being
// accepted.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is handed to the client once; the server keeps only
// HashRefreshRaw(Raw).
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims is the identity carried by an access token.
type Claims struct {
	AccountID uint64
	TenantID  uint64
	Role      string
}

// ErrInvalidToken covers every way an access token can fail to verify.
var ErrInvalidToken = errors.New("invalid token")

type accessClaims struct {
	Tenant uint64 `json:"tenant"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithExpirationRequired(),
)

// NewAccessToken signs the account's identity for ttlMin minutes.
func NewAccessToken(secret string, accountID, tenantID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Tenant: tenantID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret.  A token without a
// subject or tenant is rejected.
func ParseAccessToken(secret, raw string) (Claims, error) {
	var ac accessClaims
	_, err := parser.ParseWithClaims(raw, &ac, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	sub, err := strconv.ParseUint(ac.Subject, 10, 64)
	if err != nil || sub == 0 || ac.Tenant == 0 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{AccountID: sub, TenantID: ac.Tenant, Role: ac.Role}, nil
}

// NewRefreshToken draws 48 random bytes, hex encoded, valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(b),
		Exp: time.Now().UTC().AddDate(0, 0, ttlDays),
	}, nil
}

// HashRefreshRaw is the lookup key stored for a refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
