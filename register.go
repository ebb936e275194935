package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// RegisterRequest carries the sign-up payload.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.Length(7, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
	)
}

// RegisterResult is the tagged outcome of a registration attempt.
type RegisterResult struct {
	Success bool     `json:"success"`
	User    *UserDTO `json:"user,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Registration creates accounts: uniqueness pre-check, user row with a
// hashed credential, then the default role.
type Registration struct {
	users            UserStore
	logger           Logger
	phoneRegion      string
	deterministicIDs bool
}

// RegistrationOption customizes registration behavior.
type RegistrationOption func(*Registration)

// WithRegistrationLogger overrides the default logger.
func WithRegistrationLogger(logger Logger) RegistrationOption {
	return func(r *Registration) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPhoneRegion sets the default region used to parse national phone
// numbers, e.g. "US". Numbers carrying a +CC prefix ignore it.
func WithPhoneRegion(region string) RegistrationOption {
	return func(r *Registration) {
		r.phoneRegion = region
	}
}

// WithDeterministicIDs derives user IDs from the email address instead of
// random UUIDs, keeping registrations idempotent across environments.
func WithDeterministicIDs() RegistrationOption {
	return func(r *Registration) {
		r.deterministicIDs = true
	}
}

// NewRegistration returns a new Registration flow.
func NewRegistration(users UserStore, opts ...RegistrationOption) *Registration {
	reg := &Registration{
		users:       users,
		logger:      defLogger{},
		phoneRegion: "US",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}

	return reg
}

// Register creates the user and assigns the default role. Uniqueness
// conflicts report the first colliding field, checked email, then phone,
// then username. A failed role assignment fails the result, but the user
// row already written stays behind, matching the upstream behavior.
func (r *Registration) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	r.logger.Info("registration attempt", "email", req.Email)

	phone, err := r.normalizePhone(req.Phone)
	if err != nil {
		return RegisterResult{Success: false, Errors: []string{"Phone number is not valid"}}, nil
	}

	if conflict, err := r.findConflict(ctx, req, phone); err != nil {
		return RegisterResult{}, err
	} else if conflict != "" {
		r.logger.Warn("registration rejected, duplicate field", "field", conflict, "email", req.Email)
		return RegisterResult{Success: false, Errors: []string{conflict + " already exists"}}, nil
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return RegisterResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        phone,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Status:       UserStatusActive,
	}

	if r.deterministicIDs {
		if id, err := hashid.NewUUID(req.Email); err == nil {
			user.ID = id
		}
	}

	user, err = r.users.Create(ctx, user)
	if err != nil {
		return RegisterResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	if err := r.users.AddRole(ctx, user, RoleUser); err != nil {
		r.logger.Error("failed to assign default role", "email", user.Email, "error", err)
		return RegisterResult{Success: false, Errors: []string{"Failed to assign default role"}}, nil
	}

	r.logger.Info("registration completed", "email", user.Email)

	roles := []RoleName{RoleUser}
	dto := user.DTO(roles)

	return RegisterResult{Success: true, User: &dto}, nil
}

// findConflict reports the first unique field already in use, in the
// evaluation order email > phone > username.
func (r *Registration) findConflict(ctx context.Context, req RegisterRequest, phone string) (string, error) {
	checks := []struct {
		field  string
		lookup func(context.Context, string) (*User, error)
		value  string
	}{
		{"Email", r.users.ByEmail, req.Email},
		{"Phone", r.users.ByPhone, phone},
		{"Username", r.users.ByUsername, req.Username},
	}

	for _, check := range checks {
		if _, err := check.lookup(ctx, check.value); err == nil {
			return check.field, nil
		} else if !repository.IsRecordNotFound(err) {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed uniqueness check")
		}
	}

	return "", nil
}

func (r *Registration) normalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, r.phoneRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryBadInput)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
