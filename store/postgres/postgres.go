// Package postgres implements the mfauth store contracts on PostgreSQL
// through database/sql and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Stores bundles the repositories sharing one pool.
type Stores struct {
	Credentials *CredentialRepository
	MFA         *MFARepository
	Users       *UserRepository
}

// NewStores returns repositories over db.
func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Credentials: NewCredentialRepository(db),
		MFA:         NewMFARepository(db),
		Users:       NewUserRepository(db),
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return mfauth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", mfauth.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: db error: %v", mfauth.ErrUnavailable, err)
}
