package models

import (
	"fmt"
	"time"

	"github.com/elithrar/simple-scrypt"
)

// UserRole describes the permission level of an account
type UserRole string

const (
	// RoleStaff is a regular staff member who can register for events
	RoleStaff = UserRole("staff")
	// RoleAdmin can additionally manage events, users and contact requests
	RoleAdmin = UserRole("admin")
)

// ValidUserRole checks if the given value is one of the known roles
func ValidUserRole(r UserRole) bool {
	return r == RoleStaff || r == RoleAdmin
}

// User defines a staff member or administrator account of the application
type User struct {
	// Internal user ID
	ID uint `db:"id" json:"id"`
	// The user name used to log-in
	Name string `db:"name" json:"name"`
	// The hashed password for authentication
	PasswordHash string `db:"passwordHash" json:"-"`
	// The full user name for display reasons
	FullName string `db:"fullName" json:"fullName"`
	// The e-mail address notifications are sent to
	Email string `db:"email" json:"email"`
	// The permission level of this account
	Role UserRole `db:"role" json:"role"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// IsAdmin checks if this account has administrative permissions
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SetPassword sets a new password creating a password hash from the incoming password and storing
// it in the user's PasswordHash property
func (u *User) SetPassword(pass string) error {
	hash, err := scrypt.GenerateFromPassword([]byte(pass), scrypt.DefaultParams)
	if err != nil {
		return fmt.Errorf("SetPassword: Error during password hashing: %v", err)
	}
	// The library already uses a string encoding here - so there is no need to encode further
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword checks if the given password corresponds to the hash stored in the user struct.
// It returns an error if the password does not match or an error occurs when loading the password
// hash from the user
func (u *User) CheckPassword(pass string) error {
	return scrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pass))
}

// Qualification is a certificate or skill a staff member can hold, e.g. a forklift license
type Qualification struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// Display name - matched by plain string equality against event requirements
	Name string `db:"name" json:"name"`
	// A little description of the qualification
	Description string `db:"description" json:"description,omitempty"`
}

// Invitation allows one person to create a staff account via a token link sent by an administrator
type Invitation struct {
	// The invitation token - part of the link sent to the invitee
	Token string `db:"token" json:"token"`
	// The e-mail address the invitation was sent to
	Email string `db:"email" json:"email"`
	// The role the new account will receive
	Role UserRole `db:"role" json:"role"`
	// When does the invitation expire?
	ExpiresAt time.Time `db:"expiresAt" json:"expiresAt"`
	// Set once the invitation has been used to create an account
	RedeemedAt *time.Time `db:"redeemedAt" json:"redeemedAt,omitempty"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
}

// Usable checks if the invitation can still be redeemed at the given point in time
func (i *Invitation) Usable(now time.Time) bool {
	return i.RedeemedAt == nil && i.ExpiresAt.After(now)
}
