package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/user"
)

// Claims are the bearer-token claims this service verifies. Token issuance
// belongs to the identity service; only HS256 verification happens here.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, internal.ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromClaims parses the numeric user id out of verified claims.
func UserIDFromClaims(claims *Claims) (int64, error) {
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return 0, internal.ErrInvalidToken
	}
	return id, nil
}

// GenerateDevToken signs a development bearer token for a seeded user.
// Used by the seed command only.
func GenerateDevToken(secret string, u *user.User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: strconv.FormatInt(u.ID, 10),
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
