// Package lifecycle owns the watches of a controller variant: it offers a
// readiness barrier over their initial sync and an ordered, idempotent teardown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/registry"
)

// Options configures a Manager.
type Options struct {
	// Name identifies the controller in logs and metrics.
	Name string
	// Registry is stopped after all watches are closed.
	Registry *registry.Registry
	// OnShutdown runs after the registry is stopped and before the client is released.
	OnShutdown func()
	// ReleaseClient releases the API client connections. It runs last.
	ReleaseClient func()
	// PollInterval overrides the readiness poll interval.
	PollInterval time.Duration
}

// Manager owns a set of named watches.
type Manager struct {
	log  logr.Logger
	name string

	registry      *registry.Registry
	onShutdown    func()
	releaseClient func()
	pollInterval  time.Duration

	mu      sync.Mutex
	watches map[string]Watch
	closed  bool

	ready        atomic.Bool
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewManager returns a Manager without watches.
func NewManager(log logr.Logger, opts Options) *Manager {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = constants.ReadyPollInterval
	}
	return &Manager{
		log:           log.WithName("lifecycle").WithValues("controller", opts.Name),
		name:          opts.Name,
		registry:      opts.Registry,
		onShutdown:    opts.OnShutdown,
		releaseClient: opts.ReleaseClient,
		pollInterval:  interval,
		watches:       map[string]Watch{},
		done:          make(chan struct{}),
	}
}

// SetShutdownHook replaces the hook that runs between the registry stop and the client release.
func (m *Manager) SetShutdownHook(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShutdown = hook
}

// RegisterWatch stores w under name. A later registration under the same name
// replaces the earlier one. Watches registered after Shutdown are stopped immediately.
func (m *Manager) RegisterWatch(name string, w Watch) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Info("Watch registered after shutdown; stopping it", "watch", name)
		w.Stop()
		return
	}
	m.watches[name] = w
	m.mu.Unlock()
	m.log.V(1).Info("Registered watch", "watch", name)
}

// WatchNames returns the names of the registered watches.
func (m *Manager) WatchNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.watches))
	for name := range m.watches {
		names = append(names, name)
	}
	return names
}

// Synced reports whether every registered watch completed its initial sync.
func (m *Manager) Synced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	for _, w := range m.watches {
		if !w.HasSynced() {
			return false
		}
	}
	return true
}

// Ready reports whether AwaitReady has completed successfully.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Done is closed once Shutdown has completed.
func (m *Manager) Done() <-chan struct{} { return m.done }

// AwaitReady blocks until every watch has synced. When ctx ends first the
// manager is shut down and the context error is returned.
func (m *Manager) AwaitReady(ctx context.Context) error {
	err := wait.PollUntilContextCancel(ctx, m.pollInterval, true, func(context.Context) (bool, error) {
		return m.Synced(), nil
	})
	if err != nil {
		m.log.Info("Interrupted while waiting for watches to sync; shutting down")
		m.Shutdown()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	m.ready.Store(true)
	watchesSynced.WithLabelValues(m.name).Set(1)
	m.log.Info("All watches synced", "watches", len(m.WatchNames()))
	return nil
}

// Start implements manager.Runnable. It waits for readiness, then keeps the
// watches running until ctx is cancelled and shuts down.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.AwaitReady(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("controller %s did not become ready: %w", m.name, err)
	}
	<-ctx.Done()
	m.Shutdown()
	return nil
}

// NeedLeaderElection implements manager.LeaderElectionRunnable. Watches run on every replica.
func (m *Manager) NeedLeaderElection() bool { return false }

// Shutdown closes every watch, stops the registry, runs the shutdown hook and
// releases the client, in that order. It is safe to call repeatedly and on a
// partially constructed manager.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		defer close(m.done)
		m.ready.Store(false)
		watchesSynced.WithLabelValues(m.name).Set(0)

		m.mu.Lock()
		m.closed = true
		watches := m.watches
		m.watches = map[string]Watch{}
		hook := m.onShutdown
		m.mu.Unlock()

		for name, w := range watches {
			if err := stopWatch(w); err != nil {
				m.log.Error(err, "Failed to stop watch", "watch", name)
				continue
			}
			m.log.Info("Stopped watch", "watch", name)
		}

		if m.registry != nil {
			if err := m.registry.StopAll(); err != nil {
				m.log.Error(err, "Some reconciler factories failed to stop")
			}
		}

		if hook != nil {
			runGuarded(m.log, "shutdown hook", hook)
		}
		if m.releaseClient != nil {
			runGuarded(m.log, "client release", m.releaseClient)
		}
		m.log.Info("Controller shut down")
	})
}

func stopWatch(w Watch) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("watch panicked during stop: %v", rec)
		}
	}()
	w.Stop()
	return nil
}

func runGuarded(log logr.Logger, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(fmt.Errorf("%v", rec), "Panic during shutdown step", "step", what)
		}
	}()
	fn()
}
