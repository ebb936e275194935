package auth

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type refreshTokensRepo struct {
	repository.Repository[*RefreshToken]
	db  *bun.DB
	now func() time.Time
}

var _ RefreshTokenStore = (*refreshTokensRepo)(nil)

// NewRefreshTokensRepository returns the bun-backed RefreshTokenStore.
func NewRefreshTokensRepository(db *bun.DB) RefreshTokenStore {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &refreshTokensRepo{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *refreshTokensRepo) GetByToken(ctx context.Context, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// CurrentForUser returns the user's most recently issued token row, live
// or not. Callers decide what to do with a dead one.
func (r *refreshTokensRepo) CurrentForUser(ctx context.Context, userID uuid.UUID) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}

	return record, nil
}

func (r *refreshTokensRepo) Add(ctx context.Context, token *RefreshToken) (*RefreshToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt == nil {
		now := r.now()
		token.CreatedAt = &now
	}
	return r.Repository.CreateTx(ctx, r.db, token)
}

// Revoke claims the row: the conditional update succeeds for exactly one
// caller, closing the concurrent-redemption race on a shared token value.
func (r *refreshTokensRepo) Revoke(ctx context.Context, token *RefreshToken) error {
	now := r.now()

	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Where("id = ?", token.ID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRefreshTokenConsumed
	}

	token.RevokedAt = &now
	return nil
}

func (r *refreshTokensRepo) Delete(ctx context.Context, token *RefreshToken) error {
	_, err := r.db.NewDelete().
		Model(token).
		WherePK().
		Exec(ctx)
	return err
}
