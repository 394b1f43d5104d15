package nonces

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, deviceID, nonce string) error {
	query :=
		`INSERT INTO upload_nonces (device_id, nonce)
         VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, deviceID, nonce)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNonceReused
	}
	return nil
}
