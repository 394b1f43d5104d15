// Package services contains the gateway's business logic: anonymous device
// registration and secret rotation, bearer authentication, and the image
// upload, download and delete flows.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/dbx"
)

// ObjectStore is the object storage the image flows need.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// withTx runs fn in a transaction when a database is configured. Without one
// the repositories are in memory and fn gets a nil handle.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, db, nil, fn)
}

// handle returns db as a DBTX, or nil when no database is configured.
func handle(db *sql.DB) dbx.DBTX {
	if db == nil {
		return nil
	}
	return db
}
