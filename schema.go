package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema creates the tables and indexes the stores rely on. Intended
// for sqlite-backed development setups and tests; production deployments
// run their own migrations against the same model definitions.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*RoleAssignment)(nil),
		(*RefreshToken)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*RefreshToken)(nil)).
		Index("idx_refresh_tokens_user_id").
		Column("user_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	return nil
}
