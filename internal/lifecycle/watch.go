package lifecycle

import (
	"sync"

	"k8s.io/client-go/tools/cache"
)

// Watch is a running subscription to a category of cluster objects.
type Watch interface {
	// HasSynced reports whether the initial list has been delivered.
	HasSynced() bool
	// Stop ends the subscription. It must be safe to call more than once.
	Stop()
}

// InformerWatch runs a shared informer until stopped.
type InformerWatch struct {
	informer cache.SharedIndexInformer
	stopCh   chan struct{}
	once     sync.Once
}

// StartInformer starts informer on its own goroutine and returns a Watch over it.
// Event handlers must be added before calling StartInformer.
func StartInformer(informer cache.SharedIndexInformer) *InformerWatch {
	w := &InformerWatch{informer: informer, stopCh: make(chan struct{})}
	go informer.Run(w.stopCh)
	return w
}

// Informer returns the underlying informer.
func (w *InformerWatch) Informer() cache.SharedIndexInformer { return w.informer }

func (w *InformerWatch) HasSynced() bool { return w.informer.HasSynced() }

func (w *InformerWatch) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
