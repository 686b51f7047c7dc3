package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/flinkconf"
	"github.com/flork/flork-operator/internal/logging"
)

// Options configures the reconcilers created by a Factory.
type Options struct {
	// Kind is the Flink kind being reconciled.
	Kind    string
	Workers int

	Deployer Deployer
	Status   StatusWriter
	Elector  Elector
	// HA is optional; without it deleted clusters keep their HA state.
	HA *HACleaner
	// Paused defers all work while it returns true.
	Paused func() bool

	// RateLimiter overrides the default per-item retry limiter.
	RateLimiter workqueue.TypedRateLimiter[string]
}

// DefaultRateLimiter retries failing items with exponential backoff, capped by
// an overall token bucket.
func DefaultRateLimiter() workqueue.TypedRateLimiter[string] {
	return workqueue.NewTypedMaxOfRateLimiter[string](
		workqueue.NewTypedItemExponentialFailureRateLimiter[string](200*time.Millisecond, 5*time.Minute),
		&workqueue.TypedBucketRateLimiter[string]{Limiter: rate.NewLimiter(rate.Limit(10), 100)},
	)
}

// Reconciler processes the resources of one watch through a rate-limited work queue.
type Reconciler struct {
	log    logr.Logger
	opts   Options
	lister *ListerRef
	queue  workqueue.TypedRateLimitingInterface[string]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	tombstones map[string]*Target
}

func newReconciler(ctx context.Context, log logr.Logger, opts Options, lister *ListerRef) *Reconciler {
	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Reconciler{
		log:    log,
		opts:   opts,
		lister: lister,
		queue: workqueue.NewTypedRateLimitingQueueWithConfig[string](limiter, workqueue.TypedRateLimitingQueueConfig[string]{
			Name: "flork-" + opts.Kind,
		}),
		ctx:        ctx,
		cancel:     cancel,
		tombstones: map[string]*Target{},
	}
}

func (r *Reconciler) start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			wait.UntilWithContext(r.ctx, r.worker, time.Second)
		}()
	}
}

// Enqueue schedules obj for reconciliation. It is used for adds and updates.
func (r *Reconciler) Enqueue(obj any) {
	key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
	if err != nil {
		utilruntime.HandleError(fmt.Errorf("couldn't get key for object %+v: %w", obj, err))
		return
	}
	r.queue.Add(key)
}

// EnqueueKey schedules namespace/name for reconciliation.
func (r *Reconciler) EnqueueKey(namespace, name string) {
	r.queue.Add(namespace + "/" + name)
}

// Delete schedules the teardown of obj. The last known state is kept so that
// teardown can run after the object left the cache.
func (r *Reconciler) Delete(obj any) {
	target, err := r.lister.Convert(obj)
	if err != nil {
		r.log.Error(err, "Failed to decode deleted object; its cluster will not be removed")
		return
	}
	r.mu.Lock()
	r.tombstones[target.Key()] = target
	r.mu.Unlock()
	r.queue.Add(target.Key())
}

// Len returns the number of queued items.
func (r *Reconciler) Len() int { return r.queue.Len() }

// Stop shuts the queue down and waits up to timeout for the workers to exit.
func (r *Reconciler) Stop(timeout time.Duration) error {
	r.cancel()
	r.queue.ShutDown()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s reconciler workers did not stop within %s", r.opts.Kind, timeout)
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	for r.processNextWorkItem(ctx) {
	}
}

// processNextWorkItem handles one key off the queue. It returns false when the queue shut down.
func (r *Reconciler) processNextWorkItem(ctx context.Context) bool {
	key, quit := r.queue.Get()
	if quit {
		return false
	}
	defer r.queue.Done(key)

	start := time.Now()
	err := r.sync(ctx, key)
	reconcileDuration.WithLabelValues(r.opts.Kind).Observe(time.Since(start).Seconds())
	if err == nil {
		reconcileTotal.WithLabelValues(r.opts.Kind, resultSuccess).Inc()
		r.queue.Forget(key)
		return true
	}

	reconcileTotal.WithLabelValues(r.opts.Kind, resultError).Inc()
	requeue, after := operatorerrors.ShouldRequeue(err)
	switch {
	case !requeue:
		r.log.Error(err, "Reconciliation failed permanently", "key", key)
		r.queue.Forget(key)
	case after > 0:
		r.log.Info("Reconciliation failed; retrying", "key", key, "after", after, "error", err.Error())
		r.queue.AddAfter(key, after)
	default:
		r.log.Error(err, "Reconciliation failed; retrying with backoff", "key", key)
		r.queue.AddRateLimited(key)
	}
	return true
}

func (r *Reconciler) sync(ctx context.Context, key string) error {
	if r.opts.Paused != nil && r.opts.Paused() {
		r.queue.AddAfter(key, constants.RequeueShort)
		return nil
	}

	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		return operatorerrors.ContractViolation("invalid key %q", key)
	}
	log := r.log.WithValues("kind", r.opts.Kind, "namespace", namespace, "name", name)

	target, err := r.lister.Get(namespace, name)
	if err != nil {
		return err
	}
	if target == nil {
		tomb := r.takeTombstone(key)
		if tomb == nil {
			return nil
		}
		if err := r.finalize(ctx, tomb); err != nil {
			r.putTombstone(tomb)
			return err
		}
		return nil
	}
	r.takeTombstone(key)

	if target.Settled() {
		log.V(1).Info("Generation already settled", "generation", target.Generation, "phase", target.Phase)
		return nil
	}
	if !r.opts.Elector.IsLeader(namespace, name) {
		log.V(1).Info("Not the lease holder; skipping")
		return nil
	}

	if target.Phase != florkv1.FlorkPhaseDeploying || target.GenerationDuringLastTransition != target.Generation {
		if err := r.opts.Status.WriteStatus(ctx, target, Status{Phase: florkv1.FlorkPhaseDeploying, Generation: target.Generation}); err != nil {
			return err
		}
	}

	rendered, err := flinkconf.Render(log, target.Source)
	if err == nil {
		err = r.opts.Deployer.Deploy(ctx, target, rendered)
	}
	if err != nil && operatorerrors.IsPermanent(err) {
		if statusErr := r.opts.Status.WriteStatus(ctx, target, Status{
			Phase:      florkv1.FlorkPhaseFailed,
			Generation: target.Generation,
			Err:        err,
		}); statusErr != nil {
			log.Error(statusErr, "Failed to record failure")
		}
		return err
	}
	if err != nil {
		return err
	}

	log.Info("Deployed Flink cluster", "generation", target.Generation)
	return r.opts.Status.WriteStatus(ctx, target, Status{Phase: florkv1.FlorkPhaseDeployed, Generation: target.Generation})
}

// finalize tears down the cluster of a deleted resource.
func (r *Reconciler) finalize(ctx context.Context, target *Target) error {
	r.opts.Elector.Release(target.Namespace, target.Name)

	if err := r.opts.Deployer.Delete(ctx, target.Namespace, target.Name); err != nil {
		return err
	}
	if r.opts.HA != nil && r.opts.HA.Applies(target) {
		if err := r.opts.HA.Clean(ctx, target); err != nil {
			return err
		}
	}

	logging.LogAuditEvent(r.log, logging.EventFlinkResourceDeleted, map[string]string{
		"kind":      target.Kind,
		"namespace": target.Namespace,
		"name":      target.Name,
	})
	return nil
}

func (r *Reconciler) takeTombstone(key string) *Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tombstones[key]
	delete(r.tombstones, key)
	return t
}

func (r *Reconciler) putTombstone(t *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tombstones[t.Key()]; !ok {
		r.tombstones[t.Key()] = t
	}
}
