package dto

import "time"

// Login takes its credentials from the Authorization: Basic header, so there
// is no request body.

type UserResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Mail         string     `json:"mail"`
	Type         string     `json:"type"`
	EntryAllowed bool       `json:"entry_allowed"`
	CPF          *string    `json:"cpf,omitempty"`
	BirthDate    *string    `json:"birth_date,omitempty"`
	Gender       *string    `json:"gender,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// RegisterUserRequest is a public self-registration. The account starts
// pending: it cannot log in until an admin approves it.
type RegisterUserRequest struct {
	Name      string  `json:"name"       validate:"required,min=2,max=120"`
	Mail      string  `json:"mail"       validate:"required,email,max=120"`
	Password  string  `json:"password"   validate:"required,min=6,max=72"`
	CPF       *string `json:"cpf"        validate:"omitempty,max=14"`
	BirthDate *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender    *string `json:"gender"     validate:"omitempty,oneof=F M"`
	Phone     *string `json:"phone"      validate:"omitempty,max=20"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"` // seconds
	User      UserResponse `json:"user"`
}
