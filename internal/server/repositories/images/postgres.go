package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, img *models.Image) error {
	query :=
		`INSERT INTO images (id, device_id, storage_key, content_type, size_bytes)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		img.ID, img.DeviceID, img.StorageKey, img.ContentType, nullableInt64(img.SizeBytes)).Scan(&img.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Image, error) {
	query :=
		`SELECT id, device_id, storage_key, content_type, size_bytes, created_at FROM images
		 WHERE id = $1
		 `

	img := &models.Image{}
	var size sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&img.ID, &img.DeviceID, &img.StorageKey, &img.ContentType, &size, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if size.Valid {
		img.SizeBytes = &size.Int64
	}
	return img, nil
}

func (r *PostgresRepository) UpdateUpload(ctx context.Context, id, contentType string, sizeBytes *int64) error {
	query :=
		`UPDATE images SET content_type = $2, size_bytes = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, contentType, nullableInt64(sizeBytes))
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

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
