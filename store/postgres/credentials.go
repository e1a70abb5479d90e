package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/internal/dbx"
)

const credentialColumns = `id, user_id, email, password_hash, last_login, created_at, updated_at, deleted_at`

// CredentialRepository implements [mfauth.CredentialStore].
type CredentialRepository struct {
	db *sql.DB
}

var _ mfauth.CredentialStore = (*CredentialRepository)(nil)

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*mfauth.Credential, error) {
	var (
		c         mfauth.Credential
		lastLogin sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.PasswordHash, &lastLogin, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		c.LastLogin = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return &c, nil
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*mfauth.Credential, error) {
	query :=
		`SELECT ` + credentialColumns + ` FROM credentials
		 WHERE email = $1 AND deleted_at IS NULL
		 `
	return scanCredential(r.db.QueryRowContext(ctx, query, email))
}

func (r *CredentialRepository) FindByID(ctx context.Context, id int64) (*mfauth.Credential, error) {
	query :=
		`SELECT ` + credentialColumns + ` FROM credentials
		 WHERE id = $1 AND deleted_at IS NULL
		 `
	return scanCredential(r.db.QueryRowContext(ctx, query, id))
}

func (r *CredentialRepository) FindEmailByUserID(ctx context.Context, userID int64) (string, error) {
	query :=
		`SELECT email FROM credentials
		 WHERE user_id = $1 AND deleted_at IS NULL
		 `
	var email string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&email); err != nil {
		return "", mapError(err)
	}
	return email, nil
}

// Insert creates the owning user and the credential in one transaction.
func (r *CredentialRepository) Insert(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var userID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO users DEFAULT VALUES RETURNING id`,
		).Scan(&userID); err != nil {
			return err
		}

		query :=
			`INSERT INTO credentials (user_id, email, password_hash)
			 VALUES ($1, $2, $3)
			 RETURNING id
			 `
		return tx.QueryRowContext(ctx, query, userID, email, passwordHash).Scan(&id)
	})
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (r *CredentialRepository) Update(ctx context.Context, id int64, upd mfauth.CredentialUpdate) (*mfauth.Credential, error) {
	query :=
		`UPDATE credentials
		 SET password_hash = COALESCE($2, password_hash),
		     last_login = COALESCE($3, last_login),
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING ` + credentialColumns

	return scanCredential(r.db.QueryRowContext(ctx, query, id, nullString(upd.PasswordHash), nullTime(upd.LastLogin)))
}

// Delete marks the credential deleted. Lookups skip it afterwards.
func (r *CredentialRepository) Delete(ctx context.Context, id int64) (*mfauth.Credential, error) {
	query :=
		`UPDATE credentials SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING ` + credentialColumns

	return scanCredential(r.db.QueryRowContext(ctx, query, id))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
