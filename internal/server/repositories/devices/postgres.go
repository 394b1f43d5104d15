package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/dbx"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Device) error {
	query :=
		`INSERT INTO devices (id, secret_salt, secret_hash, expires_at)
         VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, d.ID, d.SecretSalt, d.SecretHash, d.ExpiresAt).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Device, error) {
	query :=
		`SELECT id, secret_salt, secret_hash, expires_at, created_at FROM devices
		 WHERE id = $1
		 `

	d := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.SecretSalt, &d.SecretHash, &d.ExpiresAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) RotateSecret(ctx context.Context, id string, salt, hash []byte, expiresAt time.Time) error {
	query :=
		`UPDATE devices SET secret_salt = $2, secret_hash = $3, expires_at = $4
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, salt, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
