// Package registry tracks every live reconciler factory so that a controller
// shutdown can stop all of them without holding direct references.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// Factory is a producer of reconcilers whose resources must be released on shutdown.
type Factory interface {
	// StopAll stops every reconciler created by the factory.
	StopAll() error
}

// Registry is a shutdown coordinator shared by the controller variants of one process.
type Registry struct {
	log logr.Logger

	mu        sync.Mutex
	factories []Factory
}

// New returns an empty registry.
func New(log logr.Logger) *Registry {
	return &Registry{log: log.WithName("factory-registry")}
}

// Register adds a factory. It may be called while StopAll is running; such a
// factory is kept for the next StopAll.
func (r *Registry) Register(f Factory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.factories)
}

// StopAll stops every registered factory and empties the registry.
// Factory failures, including panics, are logged and joined into the returned
// error; they never prevent the remaining factories from being stopped.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	factories := r.factories
	r.factories = nil
	r.mu.Unlock()

	var errs []error
	for i, f := range factories {
		if err := stopFactory(f); err != nil {
			r.log.Error(err, "Failed to stop reconciler factory", "index", i, "factory", fmt.Sprintf("%T", f))
			errs = append(errs, err)
			continue
		}
		r.log.V(1).Info("Stopped reconciler factory", "index", i)
	}
	return errors.Join(errs...)
}

func stopFactory(f Factory) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("factory panicked during stop: %v", rec)
		}
	}()
	return f.StopAll()
}
