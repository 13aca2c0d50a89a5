package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload.
type JWTClaims struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
