package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/loginapp/internal/common"
	"github.com/dmitrijs2005/loginapp/internal/server/models"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, username string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
		 `

	var exists bool
	err := r.db.QueryRowContext(ctx, query, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return exists, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, created_at FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return user, nil
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, username string, passwordHash string) (*models.User, error) {
	query :=
		`INSERT INTO users (username, password_hash)
         VALUES ($1, $2)
		 RETURNING id, created_at
		 `

	user := &models.User{Username: username, PasswordHash: passwordHash}
	err := r.db.QueryRowContext(ctx, query, username, passwordHash).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		// The UNIQUE constraint on username is what makes this insert atomic
		// with respect to concurrent registrations. The CHECK constraint
		// backstops the service-level username validation.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return nil, common.ErrAlreadyExists
			case pgerrcode.CheckViolation:
				return nil, common.ErrInvalidInput
			}
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return user, nil
}
