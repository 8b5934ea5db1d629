package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, name, role, password_hash, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, classify(err, ErrUserNotFound)
}

// GetByUsername retrieves a user by login name (used for authentication).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	return u, classify(err, ErrUserNotFound)
}

// Create inserts a new user and fills in ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, name, role, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Username, u.Name, u.Role, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return classify(err, nil)
}

// UpsertStudents bulk-creates student accounts, updating names and passwords of existing ones.
// Returns the number of rows written.
func (r *UserRepository) UpsertStudents(ctx context.Context, users []model.User) (int, error) {
	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(
			`INSERT INTO users (username, name, role, password_hash)
			 VALUES ($1, $2, 'student', $3)
			 ON CONFLICT (username) DO UPDATE
			 SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash`,
			u.Username, u.Name, u.PasswordHash,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range users {
		tag, err := br.Exec()
		if err != nil {
			return written, classify(err, nil)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// SetRole changes a user's role.
func (r *UserRepository) SetRole(ctx context.Context, id int, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return classify(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
