package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued by the accounts service.
type JWTClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
