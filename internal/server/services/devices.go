package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
	"github.com/dmitrijs2005/imagesync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DeviceCredentials is what a device receives on registration or refresh.
// Only the hash of Secret is kept server-side.
type DeviceCredentials struct {
	DeviceID  string
	Secret    string
	ExpiresAt time.Time
}

// Token renders the bearer token the device presents.
func (c DeviceCredentials) Token() string { return c.DeviceID + "." + c.Secret }

// DeviceService registers devices, rotates their secrets and authenticates
// bearer tokens.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validity    time.Duration
	log         logging.Logger
	now         func() time.Time
}

// NewDeviceService builds a DeviceService. db may be nil with an in-memory
// repository manager.
func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, validity time.Duration, log logging.Logger) *DeviceService {
	return &DeviceService{db: db, repomanager: m, validity: validity, log: log, now: time.Now}
}

// Register creates a device with a fresh id and secret.
func (s *DeviceService) Register(ctx context.Context) (*DeviceCredentials, error) {
	creds, salt, hash, err := s.mint(uuid.NewString())
	if err != nil {
		return nil, err
	}

	d := &models.Device{ID: creds.DeviceID, SecretSalt: salt, SecretHash: hash, ExpiresAt: creds.ExpiresAt}
	if err := s.repomanager.Devices(handle(s.db)).Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.log.Info(ctx, "device registered", "device_id", d.ID)
	return creds, nil
}

// Refresh rotates the secret of the device named by token. Expiry is ignored
// so an expired device can recover; the old secret stops working.
func (s *DeviceService) Refresh(ctx context.Context, token string) (*DeviceCredentials, error) {
	d, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	creds, salt, hash, err := s.mint(d.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Devices(handle(s.db)).RotateSecret(ctx, d.ID, salt, hash, creds.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to rotate secret[%s]: %w", d.ID, err)
	}

	s.log.Info(ctx, "device secret rotated", "device_id", d.ID)
	return creds, nil
}

// Authenticate resolves token to a device id. It returns
// common.ErrUnauthorized for unknown devices or wrong secrets and
// common.ErrTokenExpired once the secret's validity has passed.
func (s *DeviceService) Authenticate(ctx context.Context, token string) (string, error) {
	d, err := s.verify(ctx, token)
	if err != nil {
		return "", err
	}
	if !s.now().Before(d.ExpiresAt) {
		return "", common.ErrTokenExpired
	}
	return d.ID, nil
}

func (s *DeviceService) verify(ctx context.Context, token string) (*models.Device, error) {
	id, secret, err := ParseToken(token)
	if err != nil {
		return nil, err
	}

	d, err := s.repomanager.Devices(handle(s.db)).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load device[%s]: %w", id, err)
	}
	if !verifySecret(secret, d.SecretSalt, d.SecretHash) {
		return nil, common.ErrUnauthorized
	}
	return d, nil
}

func (s *DeviceService) mint(deviceID string) (*DeviceCredentials, []byte, []byte, error) {
	secret, err := common.RandomHex(secretBytes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	salt, err := newSalt()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	creds := &DeviceCredentials{
		DeviceID:  deviceID,
		Secret:    secret,
		ExpiresAt: s.now().Add(s.validity).UTC().Truncate(time.Second),
	}
	return creds, salt, hashSecret(secret, salt), nil
}
