// Package credentials persists the device credential in the local secret
// store. The three fields live under separate keys and are always written
// and removed together.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/imagesync/internal/dbx"
)

const (
	KeyDeviceID     = "device_id"
	KeyDeviceSecret = "device_secret"
	KeyTokenExpiry  = "token_expiry"
)

var (
	// ErrNotFound means no credential has been stored yet.
	ErrNotFound = errors.New("credential not found")
	// ErrCorrupt means a credential exists but cannot be decoded.
	ErrCorrupt = errors.New("credential corrupt")
)

// Store is the secret storage for the device credential.
type Store interface {
	Save(ctx context.Context, c models.DeviceCredential) error
	// Load returns ErrNotFound or ErrCorrupt (wrapped) on failure.
	Load(ctx context.Context) (models.DeviceCredential, error)
	Delete(ctx context.Context) error
}

// SQLiteStore keeps the credential in the metadata table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, c models.DeviceCredential) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for k, v := range encode(c) {
			if err := repo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Load(ctx context.Context) (models.DeviceCredential, error) {
	repo := metadata.NewSQLiteRepository(s.db)

	values := make(map[string][]byte, 3)
	for _, k := range []string{KeyDeviceID, KeyDeviceSecret, KeyTokenExpiry} {
		v, err := repo.Get(ctx, k)
		if err != nil {
			return models.DeviceCredential{}, err
		}
		if v != nil {
			values[k] = v
		}
	}
	return decode(values)
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	return metadata.NewSQLiteRepository(s.db).Delete(ctx, KeyDeviceID, KeyDeviceSecret, KeyTokenExpiry)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, c models.DeviceCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range encode(c) {
		s.values[k] = v
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (models.DeviceCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decode(s.values)
}

func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, KeyDeviceID)
	delete(s.values, KeyDeviceSecret)
	delete(s.values, KeyTokenExpiry)
	return nil
}

// Put stores a raw value; tests use it to plant broken entries.
func (s *MemoryStore) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func encode(c models.DeviceCredential) map[string][]byte {
	return map[string][]byte{
		KeyDeviceID:     []byte(c.DeviceID),
		KeyDeviceSecret: []byte(c.DeviceSecret),
		KeyTokenExpiry:  []byte(c.TokenExpiry.UTC().Format(time.RFC3339Nano)),
	}
}

func decode(values map[string][]byte) (models.DeviceCredential, error) {
	id, hasID := values[KeyDeviceID]
	secret, hasSecret := values[KeyDeviceSecret]
	expiry, hasExpiry := values[KeyTokenExpiry]

	if !hasID && !hasSecret && !hasExpiry {
		return models.DeviceCredential{}, ErrNotFound
	}
	if !hasID || !hasSecret || !hasExpiry || len(id) == 0 || len(secret) == 0 {
		return models.DeviceCredential{}, fmt.Errorf("%w: incomplete entry", ErrCorrupt)
	}

	t, err := time.Parse(time.RFC3339Nano, string(expiry))
	if err != nil {
		return models.DeviceCredential{}, fmt.Errorf("%w: token expiry: %v", ErrCorrupt, err)
	}

	return models.DeviceCredential{
		DeviceID:     string(id),
		DeviceSecret: string(secret),
		TokenExpiry:  t,
	}, nil
}
