package jwt

import (
	"errors"
	"fmt"
	"time"

	"gamesfinder/backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity fields carried by an access token.
type Claims struct {
	UserID uint
	Role   string
}

// GenerateToken creates a new JWT for a given user ID and role.
func GenerateToken(userID uint, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour * 24 * 7).Unix(), // Token expires in 7 days
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ParseToken validates a token and returns its claims.
func ParseToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	return Claims{UserID: uint(sub), Role: role}, nil
}
