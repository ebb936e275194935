package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload carried by access tokens. Roles are the
// snapshot read from the user store at mint time.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email    string     `json:"email,omitempty"`
	Username string     `json:"username,omitempty"`
	Roles    []RoleName `json:"roles,omitempty"`
}

// UserID returns the subject identifier.
func (c *AccessClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// HasRole checks if the token asserts a specific role.
func (c *AccessClaims) HasRole(role RoleName) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the token asserts at least one of the given roles.
// No roles given means any authenticated subject passes.
func (c *AccessClaims) HasAnyRole(roles ...RoleName) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
