package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

// UsersRepository reads account data needed by the booking core.
type UsersRepository struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepository = (*UsersRepository)(nil)

// Create inserts a user. Accounts are normally provisioned by the identity
// service; this exists for seeding and tests.
func (r *UsersRepository) Create(ctx context.Context, email, name string, role domain.Role) (domain.User, error) {
	const query = `
        INSERT INTO users (email, name, role)
        VALUES ($1,$2,$3)
        RETURNING id, email, name, role, created_at
    `
	var (
		user domain.User
		rl   string
	)
	err := r.pool.QueryRow(ctx, query, email, name, string(role)).Scan(&user.ID, &user.Email, &user.Name, &rl, &user.CreatedAt)
	if err != nil {
		return domain.User{}, translate("create user", err)
	}
	user.Role = domain.Role(rl)
	return user, nil
}

// GetByID fetches a user by id.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT id, email, name, role, created_at FROM users WHERE id = $1`
	var (
		user domain.User
		rl   string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &rl, &user.CreatedAt)
	if err != nil {
		return domain.User{}, translate("get user", err)
	}
	user.Role = domain.Role(rl)
	return user, nil
}
