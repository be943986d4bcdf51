package model

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Code prefixes per role; user codes look like DOC-0042.
var rolePrefixes = map[string]string{
	RoleAdmin:   "ADM",
	RoleDoctor:  "DOC",
	RolePatient: "PAT",
}

// RolePrefix returns the human-readable code prefix for a role,
// or empty string for an unknown role.
func RolePrefix(role string) string {
	return rolePrefixes[role]
}

// ValidRole reports whether role is one of the supported roles.
func ValidRole(role string) bool {
	_, ok := rolePrefixes[role]
	return ok
}

// User represents a system user
type User struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	UserCode          string     `json:"user_code" db:"user_code"`
	Role              string     `json:"role" db:"role"`
	Name              string     `json:"name" db:"name"`
	Email             string     `json:"email" db:"email"`
	PasswordHash      string     `json:"-" db:"password_hash"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	MustResetPassword bool       `json:"must_reset_password" db:"must_reset_password"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// LoginRequest starts the OTP flow.
type LoginRequest struct {
	Role     string `json:"role" binding:"required,oneof=admin doctor patient"`
	UserCode string `json:"user_code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued OTP back to the caller. Echoing the code
// is a legacy debug affordance, not a production behavior; see DESIGN.md.
type LoginResponse struct {
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	Otp       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type VerifyCodeResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type ResendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	UserCode    string `json:"user_code" binding:"required"`
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type LogoutRequest struct {
	UserCode string `json:"user_code" binding:"required"`
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role" binding:"required,oneof=admin doctor patient"`
}

// CreateUserResponse returns the temporary password exactly once.
type CreateUserResponse struct {
	User         *User  `json:"user"`
	TempPassword string `json:"temp_password"`
}
