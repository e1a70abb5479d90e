package postgres

import (
	"context"
	"database/sql"

	"github.com/MrEthical07/mfauth"
)

// MFARepository implements [mfauth.MFAStore]. A record belongs to the user
// whose mfa_id points at it.
type MFARepository struct {
	db *sql.DB
}

var _ mfauth.MFAStore = (*MFARepository)(nil)

func NewMFARepository(db *sql.DB) *MFARepository {
	return &MFARepository{db: db}
}

func scanRecord(row scanner) (*mfauth.MFARecord, error) {
	var rec mfauth.MFARecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Secret, &rec.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *MFARepository) FindByUserID(ctx context.Context, userID int64) (*mfauth.MFARecord, error) {
	query :=
		`SELECT m.id, u.id, m.secret, m.created_at
		 FROM mfa m JOIN users u ON u.mfa_id = m.id
		 WHERE u.id = $1
		 `
	return scanRecord(r.db.QueryRowContext(ctx, query, userID))
}

func (r *MFARepository) FindByID(ctx context.Context, id int64) (*mfauth.MFARecord, error) {
	query :=
		`SELECT m.id, COALESCE(u.id, 0), m.secret, m.created_at
		 FROM mfa m LEFT JOIN users u ON u.mfa_id = m.id
		 WHERE m.id = $1
		 `
	return scanRecord(r.db.QueryRowContext(ctx, query, id))
}

func (r *MFARepository) Insert(ctx context.Context, secret string) (int64, error) {
	query :=
		`INSERT INTO mfa (secret) VALUES ($1)
		 RETURNING id
		 `
	var id int64
	if err := r.db.QueryRowContext(ctx, query, secret).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (r *MFARepository) UpdateSecret(ctx context.Context, userID int64, secret string) (*mfauth.MFARecord, error) {
	query :=
		`UPDATE mfa m SET secret = $2
		 FROM users u
		 WHERE u.mfa_id = m.id AND u.id = $1
		 RETURNING m.id, u.id, m.secret, m.created_at
		 `
	return scanRecord(r.db.QueryRowContext(ctx, query, userID, secret))
}

// Delete removes the record. The foreign key clears users.mfa_id.
func (r *MFARepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM mfa WHERE id = $1`, id); err != nil {
		return mapError(err)
	}
	return nil
}
