package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds staff credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StudentLoginRequest holds the credentials a student signs in with.
type StudentLoginRequest struct {
	RollNo     string `json:"roll_no" validate:"required"`
	ClassLevel string `json:"class_level" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token and the principal.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// UserInfo describes the authenticated principal in responses.
type UserInfo struct {
	ID         string     `json:"id"`
	Email      string     `json:"email,omitempty"`
	FullName   string     `json:"full_name"`
	Role       UserRole   `json:"role"`
	ClassLevel ClassLevel `json:"class_level,omitempty"`
	RollNo     string     `json:"roll_no,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens. ClassLevel is only
// set for students, whose UserID is their student ID.
type JWTClaims struct {
	UserID     string     `json:"user_id"`
	Role       UserRole   `json:"role"`
	Email      string     `json:"email,omitempty"`
	FullName   string     `json:"full_name"`
	ClassLevel ClassLevel `json:"class_level,omitempty"`
	jwt.RegisteredClaims
}
