package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// errMessage unwraps the human readable message carried by a rich error.
func errMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return err.Error()
}

// staticConfig is the fixture Config used across the suite.
type staticConfig struct {
	key        string
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (c staticConfig) GetSigningKey() string             { return c.key }
func (c staticConfig) GetIssuer() string                 { return c.issuer }
func (c staticConfig) GetAudience() []string             { return c.audience }
func (c staticConfig) GetAccessTokenTTL() time.Duration  { return c.accessTTL }
func (c staticConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTTL }

func testConfig() staticConfig {
	return staticConfig{
		key:        "test-signing-key",
		issuer:     "authd-test",
		audience:   []string{"authd-test-clients"},
		accessTTL:  2 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

// memUserStore is an in-memory UserStore. Credentials are stored in the
// clear so the suite does not pay the bcrypt cost on every login.
type memUserStore struct {
	mu        sync.Mutex
	users     []*User
	roles     map[uuid.UUID][]RoleName
	passwords map[uuid.UUID]string
	createErr error
}

var _ UserStore = (*memUserStore)(nil)

func newMemUserStore() *memUserStore {
	return &memUserStore{
		roles:     map[uuid.UUID][]RoleName{},
		passwords: map[uuid.UUID]string{},
	}
}

// seedUser registers a fixture account with the given roles and plaintext
// password, returning the stored record.
func (s *memUserStore) seedUser(user *User, password string, roles ...RoleName) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.EnsureStatus()

	s.users = append(s.users, user)
	s.passwords[user.ID] = password
	s.roles[user.ID] = append([]RoleName{}, roles...)

	return user
}

func (s *memUserStore) find(match func(*User) bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memUserStore) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.find(func(u *User) bool { return u.ID == id })
}

func (s *memUserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.find(func(u *User) bool { return u.Email == email })
}

func (s *memUserStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.find(func(u *User) bool { return u.Username == username })
}

func (s *memUserStore) ByPhone(ctx context.Context, phone string) (*User, error) {
	return s.find(func(u *User) bool { return u.Phone == phone })
}

func (s *memUserStore) List(ctx context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*User{}, s.users...), nil
}

func (s *memUserStore) Search(ctx context.Context, query string) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(query))

	var out []*User
	for _, user := range s.users {
		haystack := strings.ToLower(user.ID.String() + " " + user.Email + " " + user.Username + " " + user.Phone)
		if strings.Contains(haystack, needle) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *memUserStore) Create(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.EnsureStatus()

	s.users = append(s.users, user)
	return user, nil
}

func (s *memUserStore) Update(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.users {
		if existing.ID == user.ID {
			s.users[i] = user
			return user, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memUserStore) VerifyCredential(ctx context.Context, user *User, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.passwords[user.ID] != password {
		return ErrPasswordMismatch
	}
	return nil
}

func (s *memUserStore) GetRoles(ctx context.Context, user *User) ([]RoleName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RoleName{}, s.roles[user.ID]...), nil
}

func (s *memUserStore) AddRole(ctx context.Context, user *User, role RoleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[user.ID] = append(s.roles[user.ID], role)
	return nil
}

func (s *memUserStore) RemoveRole(ctx context.Context, user *User, role RoleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := s.roles[user.ID]
	for i, r := range roles {
		if r == role {
			s.roles[user.ID] = append(roles[:i], roles[i+1:]...)
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

// memTokenStore is an in-memory RefreshTokenStore honoring the
// conditional-revoke contract.
type memTokenStore struct {
	mu   sync.Mutex
	rows []*RefreshToken
}

var _ RefreshTokenStore = (*memTokenStore)(nil)

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{}
}

func (s *memTokenStore) all() []*RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*RefreshToken{}, s.rows...)
}

func (s *memTokenStore) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.Token == token {
			return row, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

// CurrentForUser returns the most recently added row for the user,
// mirroring the created_at ordering of the real store.
func (s *memTokenStore) CurrentForUser(ctx context.Context, userID uuid.UUID) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID {
			return s.rows[i], nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memTokenStore) Add(ctx context.Context, token *RefreshToken) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt == nil {
		now := time.Now()
		token.CreatedAt = &now
	}

	s.rows = append(s.rows, token)
	return token, nil
}

func (s *memTokenStore) Revoke(ctx context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ID == token.ID {
			if row.RevokedAt != nil {
				return ErrRefreshTokenConsumed
			}
			now := time.Now()
			row.RevokedAt = &now
			token.RevokedAt = &now
			return nil
		}
	}
	return ErrRefreshTokenConsumed
}

func (s *memTokenStore) Delete(ctx context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.rows {
		if row.ID == token.ID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// nopLogger silences the flows under test.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
