package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/dbx"
)

const assetColumns = `id, file_path, remote_image_id, upload_status, upload_retry_count,
	last_upload_attempt, uploaded_at, stored_sizes, deletion_status,
	deletion_retry_count, last_deletion_attempt, original_format, created_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.ImageAsset, error) {
	var (
		a                             models.ImageAsset
		remoteID, format              sql.NullString
		lastUpload, uploaded, lastDel sql.NullInt64
		sizes                         string
		createdAt                     int64
		uploadStatus, deletionStatus  string
	)
	err := row.Scan(&a.ID, &a.FilePath, &remoteID, &uploadStatus, &a.UploadRetryCount,
		&lastUpload, &uploaded, &sizes, &deletionStatus,
		&a.DeletionRetryCount, &lastDel, &format, &createdAt)
	if err != nil {
		return nil, err
	}

	a.RemoteImageID = dbx.StringPtr(remoteID)
	a.OriginalFormat = dbx.StringPtr(format)
	a.UploadStatus = models.UploadStatus(uploadStatus)
	a.DeletionStatus = models.DeletionStatus(deletionStatus)
	a.StoredSizes = models.SplitSizes(sizes)
	a.LastUploadAttempt = fromMillis(lastUpload)
	a.UploadedAt = fromMillis(uploaded)
	a.LastDeletionAttempt = fromMillis(lastDel)
	a.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &a, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.ImageAsset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM image_assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset[%s]: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) FindAll(ctx context.Context, pred Predicate) ([]*models.ImageAsset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM image_assets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var result []*models.ImageAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		if pred == nil || pred(a) {
			result = append(result, a)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, a *models.ImageAsset) error {
	query := `INSERT INTO image_assets (` + assetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			remote_image_id = excluded.remote_image_id,
			upload_status = excluded.upload_status,
			upload_retry_count = excluded.upload_retry_count,
			last_upload_attempt = excluded.last_upload_attempt,
			uploaded_at = excluded.uploaded_at,
			stored_sizes = excluded.stored_sizes,
			deletion_status = excluded.deletion_status,
			deletion_retry_count = excluded.deletion_retry_count,
			last_deletion_attempt = excluded.last_deletion_attempt,
			original_format = excluded.original_format`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.FilePath, dbx.NullableString(a.RemoteImageID), string(a.UploadStatus), a.UploadRetryCount,
		toMillis(a.LastUploadAttempt), toMillis(a.UploadedAt), models.JoinSizes(a.StoredSizes),
		string(a.DeletionStatus), a.DeletionRetryCount, toMillis(a.LastDeletionAttempt),
		dbx.NullableString(a.OriginalFormat), a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save asset[%s]: %w", a.ID, err)
	}
	return nil
}

// Update runs inside a transaction when the underlying handle can start
// one; a repository already bound to a transaction reuses it.
func (r *SQLiteRepository) Update(ctx context.Context, id string, fn Mutator) (*models.ImageAsset, error) {
	beginner, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return r.update(ctx, id, fn)
	}

	var result *models.ImageAsset
	err := dbx.WithTx(ctx, beginner, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		result, err = NewSQLiteRepository(tx).update(ctx, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) update(ctx context.Context, id string, fn Mutator) (*models.ImageAsset, error) {
	a, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.ID = id
	if err := r.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM image_assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset[%s]: %w", id, err)
	}
	return nil
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
