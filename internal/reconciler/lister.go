package reconciler

import (
	"fmt"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/tools/cache"
)

// ListerRef is a mutable reference to the cache lister of a watch. It is
// created before the watch exists and set once the informer is built.
type ListerRef struct {
	convert Converter

	mu     sync.RWMutex
	lister cache.GenericLister
}

// NewListerRef returns an unset reference that converts objects with convert.
func NewListerRef(convert Converter) *ListerRef {
	return &ListerRef{convert: convert}
}

// Set points the reference at lister.
func (l *ListerRef) Set(lister cache.GenericLister) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lister = lister
}

// Convert turns an informer object into a Target.
func (l *ListerRef) Convert(obj any) (*Target, error) { return l.convert(obj) }

// Get returns the target stored under namespace/name, or nil when it is gone.
func (l *ListerRef) Get(namespace, name string) (*Target, error) {
	l.mu.RLock()
	lister := l.lister
	l.mu.RUnlock()
	if lister == nil {
		return nil, fmt.Errorf("lister not set")
	}

	obj, err := lister.ByNamespace(namespace).Get(name)
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.convert(obj)
}
