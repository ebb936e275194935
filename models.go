package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the account lifecycle state
type UserStatus = string

const (
	// UserStatusActive is the only status allowed to authenticate
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is a temporarily blocked account
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusBanned is a permanently blocked account
	UserStatusBanned UserStatus = "banned"
)

// RoleName identifies a role a user can hold
type RoleName = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser RoleName = "User"
	// RoleAdmin can manage users
	RoleAdmin RoleName = "Admin"
	// RoleSuperAdmin can manage users and role membership
	RoleSuperAdmin RoleName = "SuperAdmin"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string     `bun:"phone_number,unique" json:"phone_number,omitempty"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Status        UserStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	RegisteredAt  *time.Time `bun:"registered_at,nullzero,default:current_timestamp" json:"registered_at,omitempty"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus normalizes a zero status to active so legacy rows
// written before the status column gained a default keep working.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// DTO maps the user to its management representation, roles attached.
func (u *User) DTO(roles []RoleName) UserDTO {
	return UserDTO{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Status:       u.Status,
		RegisteredAt: u.RegisteredAt,
		LastLoginAt:  u.LastLoginAt,
		Roles:        roles,
	}
}

// UserDTO is the wire representation for user-management responses
type UserDTO struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone_number,omitempty"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Status       UserStatus `json:"status"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Roles        []RoleName `json:"roles"`
}

// RoleAssignment is a single role held by a user
type RoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:url"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,unique:user_role,type:uuid" json:"user_id,omitempty"`
	Name          RoleName  `bun:"name,notnull,unique:user_role" json:"name,omitempty"`
}

// RefreshToken is one opaque refresh credential row. Rows are revoked,
// never mutated back to live; dead rows may linger until the next mint
// purges them.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// IsRevoked reports whether the token was consumed or invalidated.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether the token aged out at the given instant.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsLive reports whether the token can still be redeemed.
func (t *RefreshToken) IsLive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
