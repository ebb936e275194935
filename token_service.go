package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

const (
	defaultAccessTokenTTL  = 2 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// refreshTokenBytes is the entropy of the opaque refresh value.
	refreshTokenBytes = 64
)

// TokenEngine mints signed access tokens and owns the refresh token
// lifecycle: issue, rotate, revoke. The stores persist; the engine decides.
type TokenEngine struct {
	users      UserStore
	tokens     RefreshTokenStore
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
	now        func() time.Time
}

// TokenEngineOption customizes engine construction.
type TokenEngineOption func(*TokenEngine)

// WithTokenEngineLogger overrides the default logger.
func WithTokenEngineLogger(logger Logger) TokenEngineOption {
	return func(e *TokenEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTokenEngineClock injects a custom clock (useful for tests).
func WithTokenEngineClock(clock func() time.Time) TokenEngineOption {
	return func(e *TokenEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// NewTokenEngine returns a new TokenEngine. A missing signing key is a
// configuration error: we refuse to construct an engine that could only
// fail at mint time.
func NewTokenEngine(users UserStore, tokens RefreshTokenStore, cfg Config, opts ...TokenEngineOption) (*TokenEngine, error) {
	if cfg == nil || cfg.GetSigningKey() == "" {
		return nil, ErrMissingSigningKey
	}

	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}

	refreshTTL := cfg.GetRefreshTokenTTL()
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	engine := &TokenEngine{
		users:      users,
		tokens:     tokens,
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}

	return engine, nil
}

// GenerateAccessToken mints a short-lived HS512 signed JWT for the user.
// Role membership is read live from the user store on every mint.
func (e *TokenEngine) GenerateAccessToken(ctx context.Context, user *User) (string, error) {
	roles, err := e.users.GetRoles(ctx, user)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user roles")
	}

	now := e.now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    e.issuer,
			Subject:   user.ID.String(),
			Audience:  e.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.accessTTL)),
		},
		Email:    user.Email,
		Username: user.Username,
		Roles:    roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	signed, err := token.SignedString(e.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	e.logger.Debug("access token minted", "user_id", user.ID.String())

	return signed, nil
}

// GenerateRefreshToken returns an opaque, cryptographically random token
// value. Uniqueness is enforced by the store index, not here.
func (e *TokenEngine) GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// GenerateTokens mints a fresh access/refresh pair and persists exactly one
// new refresh token row for the user.
//
// The user's previously tracked token, if any, never survives: a dead row
// (revoked or expired) is purged outright, while a still-live row is revoked
// so a new login invalidates the old session rather than leaving two live
// tokens behind.
func (e *TokenEngine) GenerateTokens(ctx context.Context, user *User) (TokenPair, error) {
	accessToken, err := e.GenerateAccessToken(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := e.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	now := e.now()
	row := &RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		CreatedAt: &now,
		ExpiresAt: now.Add(e.refreshTTL),
	}

	previous, err := e.tokens.CurrentForUser(ctx, user.ID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up tracked refresh token")
	}

	if previous != nil {
		if err := e.retirePrevious(ctx, previous, now); err != nil {
			return TokenPair{}, err
		}
	}

	if _, err := e.tokens.Add(ctx, row); err != nil {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	e.logger.Info("token pair issued", "user_id", user.ID.String())

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (e *TokenEngine) retirePrevious(ctx context.Context, previous *RefreshToken, now time.Time) error {
	if previous.IsRevoked() || previous.IsExpired(now) {
		if err := e.tokens.Delete(ctx, previous); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge dead refresh token")
		}
		return nil
	}

	err := e.tokens.Revoke(ctx, previous)
	if err == nil {
		return nil
	}

	// Losing the claim means a concurrent caller already killed it,
	// which is the outcome we wanted anyway.
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == ErrRefreshTokenConsumed.TextCode {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke superseded refresh token")
}

// Refresh implements one-time-use rotation: the presented token is claimed
// and revoked before its replacement is minted, so each value redeems at
// most once even under concurrent duplicate requests.
func (e *TokenEngine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	existing, err := e.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			e.logger.Warn("refresh rejected, unknown token")
			return TokenPair{}, ErrRefreshTokenInvalid
		}
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	if !existing.IsLive(e.now()) {
		e.logger.Warn("refresh rejected, token dead", "user_id", existing.UserID.String())
		return TokenPair{}, ErrRefreshTokenExpired
	}

	user, err := e.users.ByID(ctx, existing.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			e.logger.Warn("refresh rejected, orphaned token", "user_id", existing.UserID.String())
			return TokenPair{}, goerrors.New("user not found", goerrors.CategoryAuth).
				WithTextCode("REFRESH_USER_MISSING").
				WithCode(goerrors.CodeUnauthorized)
		}
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token owner")
	}

	if err := e.tokens.Revoke(ctx, existing); err != nil {
		return TokenPair{}, err
	}

	return e.GenerateTokens(ctx, user)
}

// Validate parses and validates an access token string.
func (e *TokenEngine) Validate(tokenString string) (*AccessClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if e.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(e.issuer))
	}
	if len(e.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(e.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			e.logger.Error("validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return e.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		return claims, nil
	}

	e.logger.Error("validate could not decode claims")
	return nil, ErrTokenMalformed
}
