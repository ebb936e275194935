package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the package depends on: a message
// followed by alternating key/value pairs, slog style. *slog.Logger
// satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds token signing options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// UserStore is the capability set the flows need from user persistence.
// Credentials are verified, never read, and role membership is always
// fetched live so freshly minted tokens cannot carry stale roles.
type UserStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	ByPhone(ctx context.Context, phone string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Search(ctx context.Context, query string) ([]*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	VerifyCredential(ctx context.Context, user *User, password string) error
	GetRoles(ctx context.Context, user *User) ([]RoleName, error)
	AddRole(ctx context.Context, user *User, role RoleName) error
	RemoveRole(ctx context.Context, user *User, role RoleName) error
}

// RefreshTokenStore persists refresh token rows. Revoke must be a
// conditional claim: it succeeds for exactly one caller per row.
type RefreshTokenStore interface {
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	CurrentForUser(ctx context.Context, userID uuid.UUID) (*RefreshToken, error)
	Add(ctx context.Context, token *RefreshToken) (*RefreshToken, error)
	Revoke(ctx context.Context, token *RefreshToken) error
	Delete(ctx context.Context, token *RefreshToken) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLogLine("ERR", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLogLine("WRN", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLogLine("INF", msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLogLine("DBG", msg, args))
}

// formatLogLine renders alternating key/value pairs after the message. An
// odd trailing argument is printed bare.
func formatLogLine(level, msg string, args []any) string {
	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)

	i := 0
	for ; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if i < len(args) {
		fmt.Fprintf(&b, " %v", args[i])
	}

	return b.String()
}
