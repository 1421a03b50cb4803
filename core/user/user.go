package user

import "time"

// User is an account holder. PasswordHash is nil for accounts created
// through an OAuth provider: such accounts carry no local credential and
// can only log in through the provider.
type User struct {
	ID            string    `json:"id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	Role          string    `json:"role" db:"role"`
	PasswordHash  []byte    `json:"-" db:"password_hash"`
	OauthProvider *string   `json:"-" db:"oauth_provider"`
	AvatarURL     string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

type UserSignup struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
