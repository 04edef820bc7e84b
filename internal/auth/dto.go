package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/db/models"
	"github.com/mallhive/mallhive-backend/pkg/enums"
)

// RegisterInput is the payload for creating a shopper account. Public
// registration always produces shoppers; managers and admins are provisioned
// out of band.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	ClientIP  string
}

// LoginInput carries the credentials plus the client IP used for rate
// limiting.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// UserSummary is the sanitized user shape returned to clients.
type UserSummary struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Role        enums.UserRole `json:"role"`
	ShopID      *uuid.UUID     `json:"shop_id,omitempty"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
}

// Session is a successful authentication: the minted token and the user it
// belongs to.
type Session struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

func summarize(user *models.User) UserSummary {
	return UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		ShopID:      user.ShopID,
		LastLoginAt: user.LastLoginAt,
	}
}
