package models

import (
	"time"
)

// UserRole defines the marketplace roles a user can act as.
type UserRole string

const (
	RoleBorrower UserRole = "borrower"
	RoleInvestor UserRole = "investor"
)

// ValidRole reports whether the given role is one the marketplace knows.
func ValidRole(r UserRole) bool {
	return r == RoleBorrower || r == RoleInvestor
}

// User represents a registered borrower or investor.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"` // Store hash, not plaintext
	Role         UserRole  `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}
