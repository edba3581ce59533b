package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt"

	"creatorhub/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningSecret is returned in production when no JWT secret is set.
	ErrNoSigningSecret = errors.New("jwt signing secret not configured")
)

const devSigningSecret = "creatorhub-dev-secret"

// signingKey prefers the configured secret and falls back to the environment.
// Outside production a fixed development secret is used when neither is set.
func signingKey() ([]byte, error) {
	secret := config.AppConfig.JWTSecret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		if config.IsProduction() {
			return nil, ErrNoSigningSecret
		}
		secret = devSigningSecret
	}
	return []byte(secret), nil
}

// GenerateToken creates a signed HS256 token for subject with the given role.
// The token expires after duration.
func GenerateToken(subject, role string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(duration).Unix(),
	}
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// HashToken computes a SHA-256 hash of the token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return signingKey()
	})
}

// ExtractSubjectAndRole returns the "sub" and "role" claims of a valid token
// together with its expiry.
func ExtractSubjectAndRole(tokenString string) (string, string, time.Time, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return "", "", time.Time{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", time.Time{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return "", "", time.Time{}, ErrInvalidToken
	}
	var exp time.Time
	if v, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(v), 0)
	}
	return sub, role, exp, nil
}
