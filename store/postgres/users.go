package postgres

import (
	"context"
	"database/sql"

	"github.com/MrEthical07/mfauth"
)

// UserRepository implements [mfauth.UserLinker].
type UserRepository struct {
	db *sql.DB
}

var _ mfauth.UserLinker = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// LinkMFA sets users.mfa_id when it is empty. An unknown user is
// [mfauth.ErrNotFound].
func (r *UserRepository) LinkMFA(ctx context.Context, userID, mfaID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_id = $2 WHERE id = $1 AND mfa_id IS NULL`,
		userID, mfaID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	if !exists {
		return false, mfauth.ErrNotFound
	}
	return false, nil
}
