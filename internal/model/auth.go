package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims carry the pre-established participant identity presented at
// the websocket upgrade. This service validates them; it never issues them.
type UserClaims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}
