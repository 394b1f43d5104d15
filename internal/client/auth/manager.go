// Package auth owns the anonymous device identity and keeps the bearer token
// fresh: it registers on first use, rotates the credential before it expires,
// and caches the composite token in memory.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/credentials"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"golang.org/x/sync/singleflight"
)

// ExpiryBuffer is how long before the real expiry a token is treated as stale.
const ExpiryBuffer = 300 * time.Second

// flightKey is shared by register and refresh: both rotate the credential.
const flightKey = "credential"

var (
	ErrNotRegistered = errors.New("device not registered")
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Gateway is the part of the backend client used for identity calls.
type Gateway interface {
	RegisterDevice(ctx context.Context) (gateway.DeviceGrant, error)
	RefreshDevice(ctx context.Context, bearer string) (gateway.DeviceGrant, error)
}

type Manager struct {
	gw    Gateway
	store credentials.Store
	log   logging.Logger
	now   func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	cached *models.DeviceCredential
}

func NewManager(gw Gateway, store credentials.Store, log logging.Logger) *Manager {
	return &Manager{
		gw:    gw,
		store: store,
		log:   log.With("component", "auth"),
		now:   time.Now,
	}
}

// IsExpired reports whether a token expiring at expiry must be renewed at now.
func IsExpired(now, expiry time.Time) bool {
	return !now.Add(ExpiryBuffer).Before(expiry)
}

// IsTokenExpired reports whether the cached token is stale. Without a cached
// token it returns true.
func (m *Manager) IsTokenExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached == nil || IsExpired(m.now(), m.cached.TokenExpiry)
}

func (m *Manager) cachedToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil || IsExpired(m.now(), m.cached.TokenExpiry) {
		return "", false
	}
	return m.cached.Token(), true
}

func (m *Manager) setCached(c *models.DeviceCredential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = c
}

// EnsureAuthenticated returns a bearer token that is valid for at least
// ExpiryBuffer, registering or refreshing as needed. After one register or
// refresh the lookup is repeated once; if that still yields nothing usable
// the call fails with ErrRefreshFailed.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if token, ok := m.cachedToken(); ok {
			return token, nil
		}

		cred, err := m.store.Load(ctx)
		switch {
		case errors.Is(err, credentials.ErrNotFound):
			if attempt > 0 {
				return "", ErrRefreshFailed
			}
			if err := m.obtain(ctx, false); err != nil {
				return "", err
			}
			continue
		case err != nil:
			return "", fmt.Errorf("load credential: %w", err)
		}

		if !IsExpired(m.now(), cred.TokenExpiry) {
			m.setCached(&cred)
			return cred.Token(), nil
		}

		if attempt > 0 {
			break
		}
		if err := m.obtain(ctx, true); err != nil {
			return "", err
		}
	}

	return "", ErrRefreshFailed
}

// obtain registers or refreshes inside the shared flight unless a caller
// that went first has already stored a usable credential.
func (m *Manager) obtain(ctx context.Context, refresh bool) error {
	return m.share(ctx, func(ctx context.Context) error {
		cred, err := m.store.Load(ctx)
		if err == nil && !IsExpired(m.now(), cred.TokenExpiry) {
			m.setCached(&cred)
			return nil
		}
		if refresh {
			return m.refresh(ctx)
		}
		return m.register(ctx)
	})
}

// share runs fn in the credential flight. The flight is detached from the
// cancellation of whichever caller started it; each caller still stops
// waiting when its own ctx ends.
func (m *Manager) share(ctx context.Context, fn func(ctx context.Context) error) error {
	flightCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(flightKey, func() (any, error) {
		return nil, fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Register obtains a new device identity. Concurrent register and refresh
// calls share one request.
func (m *Manager) Register(ctx context.Context) error {
	return m.share(ctx, m.register)
}

func (m *Manager) register(ctx context.Context) error {
	grant, err := m.gw.RegisterDevice(ctx)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if err := m.persist(ctx, grant); err != nil {
		return err
	}
	m.log.Info(ctx, "device registered", "device_id", grant.DeviceID, "expires_at", grant.ExpiresAt.Time)
	return nil
}

// RefreshToken rotates the stored credential. It fails with ErrNotRegistered
// when nothing is stored.
func (m *Manager) RefreshToken(ctx context.Context) error {
	return m.share(ctx, m.refresh)
}

func (m *Manager) refresh(ctx context.Context) error {
	cred, err := m.store.Load(ctx)
	if errors.Is(err, credentials.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	grant, err := m.gw.RefreshDevice(ctx, cred.Token())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if err := m.persist(ctx, grant); err != nil {
		return err
	}
	m.log.Info(ctx, "device token rotated", "device_id", grant.DeviceID, "expires_at", grant.ExpiresAt.Time)
	return nil
}

func (m *Manager) persist(ctx context.Context, grant gateway.DeviceGrant) error {
	cred := models.DeviceCredential{
		DeviceID:     grant.DeviceID,
		DeviceSecret: grant.DeviceSecret,
		TokenExpiry:  grant.ExpiresAt.Time,
	}
	if err := m.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	m.setCached(&cred)
	return nil
}

// Credential returns the stored credential without touching the network.
func (m *Manager) Credential(ctx context.Context) (models.DeviceCredential, error) {
	return m.store.Load(ctx)
}

// Reset forgets the device identity locally.
func (m *Manager) Reset(ctx context.Context) error {
	m.setCached(nil)
	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	m.log.Info(ctx, "device credential cleared")
	return nil
}
