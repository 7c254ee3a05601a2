package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketarena/ticketarena/internal/domain"
	"github.com/ticketarena/ticketarena/internal/repository"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves a user by id.
//
// Returns repository.ErrNotFound when the user does not exist.
func (r *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	const op = "postgres.UserRepo.Get"

	var u domain.User
	err := r.handle().QueryRow(ctx,
		`SELECT id, name, email, role, is_active, avatar_url, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return &u, nil
}

// List returns one page of users, newest first, plus the total count.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	const op = "postgres.UserRepo.List"

	db := r.handle()

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	rows, err := db.Query(ctx,
		`SELECT id, name, email, role, is_active, avatar_url, created_at
		 FROM users
		 ORDER BY id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &u.AvatarURL, &u.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return out, total, nil
}

// Update overwrites the user's editable fields.
//
// Returns repository.ErrConflict when the email is already taken.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Update"

	tag, err := r.handle().Exec(ctx,
		`UPDATE users
		 SET name = $2, email = $3, role = $4, is_active = $5, avatar_url = $6
		 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.Role, u.Active, u.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

// Delete removes a user. Users referenced by bookings cannot be removed;
// the foreign key surfaces as repository.ErrReferentialConflict.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.UserRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	const op = "postgres.UserRepo.Count"

	var total int64
	if err := r.handle().QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return total, nil
}
