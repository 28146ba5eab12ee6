package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a person who pays for or shares expenses.
// Users are referenced by ID from expenses, ledger rows and payments.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the user's email address (unique).
	Email string `json:"email"`

	// Mobile is the user's phone number (unique).
	Mobile string `json:"mobile"`

	// CreatedAt is the Unix timestamp when the user was created.
	CreatedAt int64 `json:"created_at"`
}

// UserInput carries the fields needed to register a user.
type UserInput struct {
	Name   string `json:"name" validate:"required,max=100"`
	Email  string `json:"email" validate:"required,email,max=254"`
	Mobile string `json:"mobile" validate:"required,max=15,number"`
}

// NewUser validates input and returns a User with a fresh ID and timestamp.
func NewUser(input UserInput) (*User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Mobile = strings.TrimSpace(input.Mobile)

	if err := validateStruct(input); err != nil {
		return nil, err
	}

	return &User{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Email:     input.Email,
		Mobile:    input.Mobile,
		CreatedAt: time.Now().Unix(),
	}, nil
}
