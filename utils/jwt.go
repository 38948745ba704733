package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates access tokens and keeps a blacklist of
// tokens revoked on logout.
type TokenManager struct {
	secret []byte

	mu          sync.RWMutex
	blacklisted map[string]time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		blacklisted: make(map[string]time.Time),
	}
}

func (tm *TokenManager) GenerateToken(userID uint, role string) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "RestaurantPOS",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

func (tm *TokenManager) ParseToken(tokenString string) (*CustomClaims, error) {
	if tm.IsBlacklisted(tokenString) {
		return nil, errors.New("token has been revoked")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Blacklist revokes a token until its natural expiry.
func (tm *TokenManager) Blacklist(token string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.blacklisted[token] = time.Now().Add(tokenTTL)
}

func (tm *TokenManager) IsBlacklisted(token string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	expiry, exists := tm.blacklisted[token]
	if !exists {
		return false
	}
	if time.Now().Before(expiry) {
		return true
	}
	// Hapus token kadaluarsa dari blacklist
	delete(tm.blacklisted, token)
	return false
}
