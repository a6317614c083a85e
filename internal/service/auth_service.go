package service

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"meetspot/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService validates identity tokens presented at the websocket
// upgrade. Identity issuance happens upstream; this service only parses.
type AuthService struct {
	secret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ParseToken validates an HS256 token and returns its user claims.
func (s *AuthService) ParseToken(tokenString string) (*model.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
