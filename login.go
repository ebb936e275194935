package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// LoginRequest carries the credential input for a login attempt. The
// identifier can be either a username or an email address.
type LoginRequest struct {
	Identifier string `json:"usernameOrEmail"`
	Password   string `json:"password"`
}

// Validate will validate the payload
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// LoginResult is the tagged outcome of a login attempt. Failed attempts
// carry human readable reasons; only infrastructure faults surface as errors.
type LoginResult struct {
	Success bool       `json:"success"`
	Tokens  *TokenPair `json:"tokens,omitempty"`
	Errors  []string   `json:"errors,omitempty"`
}

func loginFailure(reasons ...string) LoginResult {
	return LoginResult{Success: false, Errors: reasons}
}

// LoginFlow resolves an identity, gates on account status, verifies the
// credential, and delegates token minting to the engine.
type LoginFlow struct {
	users  UserStore
	engine *TokenEngine
	logger Logger
	now    func() time.Time
}

// LoginFlowOption customizes flow construction.
type LoginFlowOption func(*LoginFlow)

// WithLoginFlowLogger overrides the default logger.
func WithLoginFlowLogger(logger Logger) LoginFlowOption {
	return func(f *LoginFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLoginFlowClock injects a custom clock (useful for tests).
func WithLoginFlowClock(clock func() time.Time) LoginFlowOption {
	return func(f *LoginFlow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// NewLoginFlow returns a new LoginFlow.
func NewLoginFlow(users UserStore, engine *TokenEngine, opts ...LoginFlowOption) *LoginFlow {
	flow := &LoginFlow{
		users:  users,
		engine: engine,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(flow)
		}
	}

	return flow
}

// Login runs the decision sequence. Each gate short-circuits: no store
// mutation happens on any failure path; the success path writes the
// last-login timestamp and rotates the refresh token exactly once.
func (f *LoginFlow) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	f.logger.Info("login attempt", "identifier", req.Identifier)

	user, err := f.resolveUser(ctx, req.Identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			f.logger.Warn("login rejected, no such user", "identifier", req.Identifier)
			return loginFailure(ErrUserNotFound.Message), nil
		}
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve login identity")
	}

	user.EnsureStatus()
	switch user.Status {
	case UserStatusBanned:
		f.logger.Warn("login rejected, user banned", "email", user.Email)
		return loginFailure(ErrUserBanned.Message), nil
	case UserStatusSuspended:
		f.logger.Warn("login rejected, user suspended", "email", user.Email)
		return loginFailure(ErrUserSuspended.Message), nil
	case UserStatusActive:
		// fall through
	default:
		f.logger.Warn("login rejected, unknown status", "email", user.Email, "status", user.Status)
		return loginFailure("User is not active"), nil
	}

	if err := f.users.VerifyCredential(ctx, user, req.Password); err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryAuth {
			f.logger.Warn("login rejected, password mismatch", "email", user.Email)
			return loginFailure(ErrPasswordMismatch.Message), nil
		}
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify credential")
	}

	tokens, err := f.engine.GenerateTokens(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	lastLogin := f.now().UTC()
	user.LastLoginAt = &lastLogin

	if _, err := f.users.Update(ctx, user); err != nil {
		return LoginResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record last login")
	}

	f.logger.Info("login succeeded", "email", user.Email)

	return LoginResult{Success: true, Tokens: &tokens}, nil
}

func (f *LoginFlow) resolveUser(ctx context.Context, identifier string) (*User, error) {
	if isEmailShaped(identifier) {
		return f.users.ByEmail(ctx, identifier)
	}
	return f.users.ByUsername(ctx, identifier)
}

// isEmailShaped is a format check only, it says nothing about existence.
func isEmailShaped(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if !strings.Contains(identifier, "@") {
		return false
	}
	_, err := mail.ParseAddress(identifier)
	return err == nil
}
