// Package connectivity tracks whether the backend is reachable and notifies
// a callback when that flips.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/logging"
)

const defaultProbeTimeout = 3 * time.Second

// Prober checks reachability; a nil error means online.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor polls a Prober on a ticker. The first probe sets the state
// silently; later probes call onChange only when the state flips.
type Monitor struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	log          logging.Logger

	mu        sync.Mutex
	connected bool
	known     bool
	onChange  func(online bool)
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewMonitor(p Prober, interval time.Duration, log logging.Logger) *Monitor {
	timeout := defaultProbeTimeout
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &Monitor{
		prober:       p,
		interval:     interval,
		probeTimeout: timeout,
		log:          log.With("component", "connectivity"),
	}
}

// IsConnected is false until the first probe succeeds.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// StartMonitoring begins polling in the background. Calling it while already
// running only replaces the callback.
func (m *Monitor) StartMonitoring(onChange func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = onChange
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// StopMonitoring stops polling and waits for the loop to exit. It is safe to
// call when not running.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe checks reachability once, updates the state and returns it.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Ping(pctx)
	cancel()

	if ctx.Err() != nil {
		return m.IsConnected()
	}

	online := err == nil
	m.set(ctx, online)
	return online
}

func (m *Monitor) set(ctx context.Context, online bool) {
	m.mu.Lock()
	if !m.known {
		m.known = true
		m.connected = online
		m.mu.Unlock()
		m.log.Info(ctx, "initial connectivity", "online", online)
		return
	}
	if m.connected == online {
		m.mu.Unlock()
		return
	}
	m.connected = online
	cb := m.onChange
	m.mu.Unlock()

	if online {
		m.log.Info(ctx, "switched to online mode")
	} else {
		m.log.Info(ctx, "switched to offline mode")
	}
	if cb != nil {
		cb(online)
	}
}
