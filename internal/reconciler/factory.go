package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultStopTimeout bounds how long StopAll waits for the workers of one reconciler.
const DefaultStopTimeout = 10 * time.Second

// Factory creates the reconcilers of one controller variant and stops them on shutdown.
type Factory struct {
	log         logr.Logger
	opts        Options
	stopTimeout time.Duration

	mu          sync.Mutex
	reconcilers []*Reconciler
}

// NewFactory returns a Factory whose reconcilers share opts.
func NewFactory(log logr.Logger, opts Options) *Factory {
	if opts.Elector == nil {
		opts.Elector = AlwaysLeader{}
	}
	return &Factory{
		log:         log.WithName("reconciler").WithValues("kind", opts.Kind),
		opts:        opts,
		stopTimeout: DefaultStopTimeout,
	}
}

// NewReconciler creates a reconciler reading from lister and starts its workers.
func (f *Factory) NewReconciler(ctx context.Context, lister *ListerRef) *Reconciler {
	r := newReconciler(ctx, f.log, f.opts, lister)
	f.mu.Lock()
	f.reconcilers = append(f.reconcilers, r)
	f.mu.Unlock()
	r.start(f.opts.Workers)
	return r
}

// Requeue schedules namespace/name on every reconciler of the factory.
// Reconcilers that do not know the resource ignore it.
func (f *Factory) Requeue(namespace, name string) {
	f.mu.Lock()
	reconcilers := append([]*Reconciler(nil), f.reconcilers...)
	f.mu.Unlock()
	for _, r := range reconcilers {
		r.EnqueueKey(namespace, name)
	}
}

// Len returns the number of live reconcilers.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reconcilers)
}

// StopAll stops every reconciler created so far and releases all leases.
func (f *Factory) StopAll() error {
	f.mu.Lock()
	reconcilers := f.reconcilers
	f.reconcilers = nil
	f.mu.Unlock()

	var errs []error
	for _, r := range reconcilers {
		if err := r.Stop(f.stopTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	f.opts.Elector.ReleaseAll()
	f.log.Info("Stopped reconcilers", "count", len(reconcilers), "failed", len(errs))
	return errors.Join(errs...)
}
