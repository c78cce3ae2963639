package utils

import (
	"errors"
	"time"

	"fitbook/config"

	"github.com/golang-jwt/jwt"
)

func secretKey() []byte {
	secret := config.AppConfig.JWTSecret
	if secret == "" {
		secret = "fitbook-dev"
	}
	return []byte(secret)
}

// GenerateToken creates a signed JWT for the given principal. Role must be
// one of the roles in models (client, trainer, admin); adminRank is only
// consulted when role is admin.
func GenerateToken(subject, role string, adminRank int, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	if adminRank > 0 {
		claims["rank"] = adminRank
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// TokenPrincipal is what a validated token asserts about its bearer.
type TokenPrincipal struct {
	Subject   string
	Role      string
	AdminRank int
}

// ValidateToken parses and validates a token string and returns the
// principal it carries.
func ValidateToken(tokenString string) (*TokenPrincipal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("token does not contain a valid 'sub' claim")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, errors.New("token does not contain a valid 'role' claim")
	}

	p := &TokenPrincipal{Subject: sub, Role: role}
	if rank, ok := claims["rank"].(float64); ok {
		p.AdminRank = int(rank)
	}
	return p, nil
}
