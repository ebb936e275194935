package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// EditUserRequest carries the admin profile edit payload. Empty fields are
// left untouched.
type EditUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate will validate the payload
func (r EditUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(7, 20)),
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
	)
}

// UserManager implements the administrative operations over the user store.
type UserManager struct {
	users       UserStore
	logger      Logger
	phoneRegion string
}

// UserManagerOption customizes manager construction.
type UserManagerOption func(*UserManager)

// WithUserManagerLogger overrides the default logger.
func WithUserManagerLogger(logger Logger) UserManagerOption {
	return func(m *UserManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithUserManagerPhoneRegion sets the region used to normalize edited
// phone numbers.
func WithUserManagerPhoneRegion(region string) UserManagerOption {
	return func(m *UserManager) {
		m.phoneRegion = region
	}
}

// NewUserManager returns a new UserManager.
func NewUserManager(users UserStore, opts ...UserManagerOption) *UserManager {
	manager := &UserManager{
		users:       users,
		logger:      defLogger{},
		phoneRegion: "US",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}

	return manager
}

// ListUsers returns every user with roles attached.
func (m *UserManager) ListUsers(ctx context.Context) ([]UserDTO, error) {
	users, err := m.users.List(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}
	return m.toDTOs(ctx, users)
}

// SearchUsers runs a case-insensitive substring match over id, email,
// username and phone.
func (m *UserManager) SearchUsers(ctx context.Context, query string) ([]UserDTO, error) {
	m.logger.Info("user search", "query", query)

	users, err := m.users.Search(ctx, query)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to search users")
	}
	return m.toDTOs(ctx, users)
}

// PromoteToAdmin grants the Admin role. Promoting an existing admin is
// rejected as a conflict, not treated as a no-op.
func (m *UserManager) PromoteToAdmin(ctx context.Context, userID string) error {
	user, roles, err := m.resolveWithRoles(ctx, userID)
	if err != nil {
		return err
	}

	if contains(roles, RoleAdmin) {
		m.logger.Warn("promotion rejected, already admin", "email", user.Email)
		return goerrors.New("User is already an admin", goerrors.CategoryConflict).
			WithTextCode("ALREADY_ADMIN").
			WithCode(goerrors.CodeConflict)
	}

	if err := m.users.AddRole(ctx, user, RoleAdmin); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to grant admin role")
	}

	m.logger.Info("user promoted to admin", "email", user.Email)
	return nil
}

// DemoteToUser removes the Admin role. Demoting a non-admin is rejected.
func (m *UserManager) DemoteToUser(ctx context.Context, userID string) error {
	user, roles, err := m.resolveWithRoles(ctx, userID)
	if err != nil {
		return err
	}

	if !contains(roles, RoleAdmin) {
		m.logger.Warn("demotion rejected, not an admin", "email", user.Email)
		return goerrors.New("User is not an admin", goerrors.CategoryConflict).
			WithTextCode("NOT_ADMIN").
			WithCode(goerrors.CodeConflict)
	}

	if err := m.users.RemoveRole(ctx, user, RoleAdmin); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove admin role")
	}

	m.logger.Info("admin demoted to user", "email", user.Email)
	return nil
}

// ChangeStatus moves the account to the target status. Setting the status
// it already has is rejected as a conflict.
func (m *UserManager) ChangeStatus(ctx context.Context, userID string, status UserStatus) error {
	switch status {
	case UserStatusActive, UserStatusSuspended, UserStatusBanned:
	default:
		return goerrors.New("unknown user status", goerrors.CategoryValidation).
			WithTextCode("UNKNOWN_STATUS").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"status": status})
	}

	user, err := m.resolveUser(ctx, userID)
	if err != nil {
		return err
	}

	user.EnsureStatus()
	if user.Status == status {
		m.logger.Warn("status change rejected, already set", "email", user.Email, "status", status)
		return goerrors.New("User is already "+status, goerrors.CategoryConflict).
			WithTextCode("STATUS_UNCHANGED").
			WithCode(goerrors.CodeConflict)
	}

	user.Status = status
	if _, err := m.users.Update(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user status")
	}

	m.logger.Info("user status changed", "email", user.Email, "status", status)
	return nil
}

// EditUser applies the non-empty fields after per-field uniqueness checks.
// First and last name carry no uniqueness constraint.
func (m *UserManager) EditUser(ctx context.Context, userID string, req EditUserRequest) error {
	user, err := m.resolveUser(ctx, userID)
	if err != nil {
		return err
	}

	if req.Username != "" && req.Username != user.Username {
		if err := m.ensureUnused(ctx, m.users.ByUsername, req.Username, "Username"); err != nil {
			return err
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if err := m.ensureUnused(ctx, m.users.ByEmail, req.Email, "Email"); err != nil {
			return err
		}
		user.Email = req.Email
	}

	if req.Phone != "" {
		parsed, err := phonenumbers.Parse(req.Phone, m.phoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			return goerrors.New("phone number is not valid", goerrors.CategoryValidation).
				WithTextCode("INVALID_PHONE").
				WithCode(goerrors.CodeBadRequest)
		}

		phone := phonenumbers.Format(parsed, phonenumbers.E164)
		if phone != user.Phone {
			if err := m.ensureUnused(ctx, m.users.ByPhone, phone, "Phone"); err != nil {
				return err
			}
			user.Phone = phone
		}
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}

	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if _, err := m.users.Update(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist user edit")
	}

	m.logger.Info("user edited", "email", user.Email)
	return nil
}

func (m *UserManager) ensureUnused(ctx context.Context, lookup func(context.Context, string) (*User, error), value, field string) error {
	_, err := lookup(ctx, value)
	if err == nil {
		m.logger.Warn("edit rejected, duplicate field", "field", field)
		return ConflictError(field)
	}
	if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed uniqueness check")
	}
	return nil
}

func (m *UserManager) resolveUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, goerrors.New("user id is empty", goerrors.CategoryValidation).
			WithTextCode("EMPTY_USER_ID").
			WithCode(goerrors.CodeBadRequest)
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "user id is not a valid uuid").
			WithCode(goerrors.CodeBadRequest)
	}

	user, err := m.users.ByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user")
	}

	return user, nil
}

func (m *UserManager) resolveWithRoles(ctx context.Context, userID string) (*User, []RoleName, error) {
	user, err := m.resolveUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	roles, err := m.users.GetRoles(ctx, user)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user roles")
	}

	return user, roles, nil
}

func (m *UserManager) toDTOs(ctx context.Context, users []*User) ([]UserDTO, error) {
	dtos := make([]UserDTO, 0, len(users))
	for _, user := range users {
		roles, err := m.users.GetRoles(ctx, user)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user roles")
		}
		dtos = append(dtos, user.DTO(roles))
	}
	return dtos, nil
}

func contains(roles []RoleName, role RoleName) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
