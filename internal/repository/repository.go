package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/tourbook/internal/store"
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Tours    *ToursRepository
	Bookings *BookingsRepository
	Reviews  *ReviewsRepository
	Users    *UsersRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Tours:    &ToursRepository{pool: pool},
		Bookings: &BookingsRepository{pool: pool},
		Reviews:  &ReviewsRepository{pool: pool},
		Users:    &UsersRepository{pool: pool},
	}
}
