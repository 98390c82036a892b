package models

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims expected on authenticated requests.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
