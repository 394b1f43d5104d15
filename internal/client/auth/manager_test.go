package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/credentials"
	"github.com/dmitrijs2005/imagesync/internal/client/gateway"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	registerCalls atomic.Int32
	refreshCalls  atomic.Int32

	registerFn func(ctx context.Context) (gateway.DeviceGrant, error)
	refreshFn  func(ctx context.Context, bearer string) (gateway.DeviceGrant, error)
}

func (f *fakeGateway) RegisterDevice(ctx context.Context) (gateway.DeviceGrant, error) {
	f.registerCalls.Add(1)
	return f.registerFn(ctx)
}

func (f *fakeGateway) RefreshDevice(ctx context.Context, bearer string) (gateway.DeviceGrant, error) {
	f.refreshCalls.Add(1)
	return f.refreshFn(ctx, bearer)
}

func grant(id, secret string, expires time.Time) gateway.DeviceGrant {
	return gateway.DeviceGrant{DeviceID: id, DeviceSecret: secret, ExpiresAt: gateway.Time{Time: expires}}
}

func newManager(gw *fakeGateway, store credentials.Store, now time.Time) *Manager {
	m := NewManager(gw, store, logging.Discard())
	m.now = func() time.Time { return now }
	return m
}

func TestIsExpired_Boundary(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsExpired(now, now.Add(300*time.Second)), "exact boundary counts as expired")
	assert.True(t, IsExpired(now, now.Add(299*time.Second)))
	assert.True(t, IsExpired(now, now.Add(-time.Hour)))
	assert.False(t, IsExpired(now, now.Add(301*time.Second)))
	assert.False(t, IsExpired(now, now.Add(time.Hour)))
}

func TestRegister_ThenEnsureAuthenticatedReturnsCompositeToken(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			return grant("d1", "s1", now.Add(3600*time.Second)), nil
		},
	}
	store := credentials.NewMemoryStore()
	m := newManager(gw, store, now)
	ctx := context.Background()

	require.NoError(t, m.Register(ctx))

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d1", stored.DeviceID)
	assert.Equal(t, "s1", stored.DeviceSecret)
	assert.True(t, stored.TokenExpiry.Equal(now.Add(3600*time.Second)))

	token, err := m.EnsureAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d1.s1", token)
	assert.Equal(t, int32(1), gw.registerCalls.Load())
	assert.False(t, m.IsTokenExpired())
}

func TestEnsureAuthenticated_RegistersWhenAbsent(t *testing.T) {
	now := time.Now()
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			return grant("d1", "s1", now.Add(time.Hour)), nil
		},
	}
	m := newManager(gw, credentials.NewMemoryStore(), now)

	token, err := m.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1.s1", token)

	token, err = m.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1.s1", token)
	assert.Equal(t, int32(1), gw.registerCalls.Load(), "cached token is reused")
}

func TestEnsureAuthenticated_UsesStoredValidCredential(t *testing.T) {
	now := time.Now()
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), models.DeviceCredential{
		DeviceID: "d9", DeviceSecret: "s9", TokenExpiry: now.Add(time.Hour),
	}))
	gw := &fakeGateway{}
	m := newManager(gw, store, now)

	token, err := m.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d9.s9", token)
	assert.Zero(t, gw.registerCalls.Load())
	assert.Zero(t, gw.refreshCalls.Load())
}

func TestEnsureAuthenticated_RefreshesExpiredCredential(t *testing.T) {
	now := time.Now()
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), models.DeviceCredential{
		DeviceID: "d1", DeviceSecret: "old", TokenExpiry: now.Add(time.Minute),
	}))

	var gotBearer string
	gw := &fakeGateway{
		refreshFn: func(_ context.Context, bearer string) (gateway.DeviceGrant, error) {
			gotBearer = bearer
			return grant("d1", "new", now.Add(time.Hour)), nil
		},
	}
	m := newManager(gw, store, now)

	token, err := m.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1.new", token)
	assert.Equal(t, "d1.old", gotBearer, "refresh authenticates with the current token")

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", stored.DeviceSecret)
}

func TestEnsureAuthenticated_BoundedWhenBackendKeepsIssuingExpiredTokens(t *testing.T) {
	now := time.Now()
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			return grant("d1", "s1", now.Add(time.Second)), nil
		},
		refreshFn: func(context.Context, string) (gateway.DeviceGrant, error) {
			return grant("d1", "s2", now.Add(time.Second)), nil
		},
	}
	m := newManager(gw, credentials.NewMemoryStore(), now)

	_, err := m.EnsureAuthenticated(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, int32(1), gw.registerCalls.Load())
	assert.Zero(t, gw.refreshCalls.Load())
}

func TestEnsureAuthenticated_PropagatesRegisterFailure(t *testing.T) {
	boom := errors.New("backend down")
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			return gateway.DeviceGrant{}, boom
		},
	}
	m := newManager(gw, credentials.NewMemoryStore(), time.Now())

	_, err := m.EnsureAuthenticated(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), gw.registerCalls.Load())
}

func TestEnsureAuthenticated_RefreshFailureIsWrapped(t *testing.T) {
	now := time.Now()
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), models.DeviceCredential{
		DeviceID: "d1", DeviceSecret: "s1", TokenExpiry: now,
	}))
	gw := &fakeGateway{
		refreshFn: func(context.Context, string) (gateway.DeviceGrant, error) {
			return gateway.DeviceGrant{}, gateway.ErrUnauthorized
		},
	}
	m := newManager(gw, store, now)

	_, err := m.EnsureAuthenticated(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestEnsureAuthenticated_CorruptCredentialIsNotReRegistered(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.Put(credentials.KeyDeviceID, []byte("d1"))
	gw := &fakeGateway{}
	m := newManager(gw, store, time.Now())

	_, err := m.EnsureAuthenticated(context.Background())
	require.ErrorIs(t, err, credentials.ErrCorrupt)
	assert.Zero(t, gw.registerCalls.Load())
}

func TestRefreshToken_NotRegistered(t *testing.T) {
	m := newManager(&fakeGateway{}, credentials.NewMemoryStore(), time.Now())
	require.ErrorIs(t, m.RefreshToken(context.Background()), ErrNotRegistered)
}

func TestEnsureAuthenticated_ConcurrentCallersShareOneRegistration(t *testing.T) {
	now := time.Now()
	release := make(chan struct{})
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			<-release
			return grant("d1", "s1", now.Add(time.Hour)), nil
		},
	}
	m := newManager(gw, credentials.NewMemoryStore(), now)

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.EnsureAuthenticated(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "d1.s1", tokens[i])
	}
	assert.Equal(t, int32(1), gw.registerCalls.Load())
}

func TestEnsureAuthenticated_CancelledCallerDoesNotFailJoinedCallers(t *testing.T) {
	now := time.Now()
	release := make(chan struct{})
	gw := &fakeGateway{
		registerFn: func(ctx context.Context) (gateway.DeviceGrant, error) {
			<-release
			if err := ctx.Err(); err != nil {
				return gateway.DeviceGrant{}, err
			}
			return grant("d1", "s1", now.Add(time.Hour)), nil
		},
	}
	m := newManager(gw, credentials.NewMemoryStore(), now)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.EnsureAuthenticated(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return gw.registerCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		token string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		token, err := m.EnsureAuthenticated(context.Background())
		second <- result{token, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "d1.s1", got.token)
	assert.Equal(t, int32(1), gw.registerCalls.Load())
}

func TestReset_ClearsStoreAndCache(t *testing.T) {
	now := time.Now()
	var n atomic.Int32
	gw := &fakeGateway{
		registerFn: func(context.Context) (gateway.DeviceGrant, error) {
			if n.Add(1) == 1 {
				return grant("d1", "s1", now.Add(time.Hour)), nil
			}
			return grant("d2", "s2", now.Add(time.Hour)), nil
		},
	}
	store := credentials.NewMemoryStore()
	m := newManager(gw, store, now)
	ctx := context.Background()

	_, err := m.Credential(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	_, err = m.EnsureAuthenticated(ctx)
	require.NoError(t, err)
	cred, err := m.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d1", cred.DeviceID)

	require.NoError(t, m.Reset(ctx))
	assert.True(t, m.IsTokenExpired())
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)

	token, err := m.EnsureAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d2.s2", token)
}
