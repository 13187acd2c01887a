// Package auth verifies the bearer credentials presented on the
// real-time endpoint. Token issuance belongs to the external API layer;
// Issue exists for the debug seed and tests.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roomcast/roomcast/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier resolves an opaque bearer credential to a participant id.
type Verifier interface {
	Verify(token string) (domain.UserID, error)
}

// JWT verifies HS256 tokens carrying the user id in the `sub` claim.
type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

func (j *JWT) Verify(token string) (domain.UserID, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return domain.UserID(id), nil
}

// Issue signs a token for the given user id.
func (j *JWT) Issue(id domain.UserID, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(int64(id), 10),
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
