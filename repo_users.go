package auth

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type usersRepo struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ UserStore = (*usersRepo)(nil)

// NewUsersRepository returns the bun-backed UserStore.
func NewUsersRepository(db *bun.DB) UserStore {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &usersRepo{
		Repository: repo,
		db:         db,
	}
}

func prepareUserDefaults(user *User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.EnsureStatus()
}

func (a *usersRepo) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.byColumn(ctx, "id", id.String())
}

func (a *usersRepo) ByEmail(ctx context.Context, email string) (*User, error) {
	return a.byColumn(ctx, "email", email)
}

func (a *usersRepo) ByUsername(ctx context.Context, username string) (*User, error) {
	return a.byColumn(ctx, "username", username)
}

func (a *usersRepo) ByPhone(ctx context.Context, phone string) (*User, error) {
	return a.byColumn(ctx, "phone_number", phone)
}

func (a *usersRepo) byColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *usersRepo) List(ctx context.Context) ([]*User, error) {
	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *usersRepo) Search(ctx context.Context, query string) ([]*User, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(CAST(?TableAlias.id AS VARCHAR)) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.username) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.phone_number) LIKE ?", pattern)
		}).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *usersRepo) Create(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)
	created, err := a.Repository.CreateTx(ctx, a.db, record)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (a *usersRepo) Update(ctx context.Context, record *User) (*User, error) {
	return a.Repository.UpdateTx(ctx, a.db, record)
}

func (a *usersRepo) VerifyCredential(ctx context.Context, user *User, password string) error {
	return ComparePasswordAndHash(password, user.PasswordHash)
}

func (a *usersRepo) GetRoles(ctx context.Context, user *User) ([]RoleName, error) {
	var assignments []*RoleAssignment
	err := a.db.NewSelect().
		Model(&assignments).
		Where("?TableAlias.user_id = ?", user.ID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	roles := make([]RoleName, 0, len(assignments))
	for _, assignment := range assignments {
		roles = append(roles, assignment.Name)
	}
	return roles, nil
}

func (a *usersRepo) AddRole(ctx context.Context, user *User, role RoleName) error {
	assignment := &RoleAssignment{
		ID:     uuid.New(),
		UserID: user.ID,
		Name:   role,
	}

	_, err := a.db.NewInsert().Model(assignment).Exec(ctx)
	return err
}

func (a *usersRepo) RemoveRole(ctx context.Context, user *User, role RoleName) error {
	res, err := a.db.NewDelete().
		Model((*RoleAssignment)(nil)).
		Where("user_id = ?", user.ID).
		Where("name = ?", role).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"user_id": user.ID.String(), "role": role})
	}

	return nil
}
