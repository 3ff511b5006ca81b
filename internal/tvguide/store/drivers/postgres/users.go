package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
)

type usersRepo struct {
	q querier
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at, updated_at
		   FROM users
		  WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt, now,
	)
	return mapPgError(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHash, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`,
		string(role), time.Now().UTC(), userID,
	))
}

func (r *usersRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, string(role),
	).Scan(&n)
	return n, err
}
