package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	ShopID *uuid.UUID
}

// AccessTokenClaims represents the typed JWT issued to clients. ShopID is set
// only for managers and scopes their order and report access.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	ShopID *uuid.UUID     `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}
