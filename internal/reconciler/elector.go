package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/flork/flork-operator/internal/constants"
)

// Elector decides which controller replica may act on a resource.
type Elector interface {
	// IsLeader reports whether this replica holds the lease of the resource,
	// starting a campaign for it when none is running.
	IsLeader(namespace, name string) bool
	// Release gives up the lease of the resource.
	Release(namespace, name string)
	// ReleaseAll gives up every lease.
	ReleaseAll()
}

// AlwaysLeader is an Elector for single-replica deployments.
type AlwaysLeader struct{}

func (AlwaysLeader) IsLeader(string, string) bool { return true }
func (AlwaysLeader) Release(string, string)       {}
func (AlwaysLeader) ReleaseAll()                  {}

// LeaseName returns the name of the Lease guarding a resource.
func LeaseName(namespace, name string) string {
	return constants.LeasePrefix + namespace + "-" + name
}

// LeaseElectorOptions configures a LeaseElector.
type LeaseElectorOptions struct {
	Identity string
	// OnStartedLeading is called with the namespace and name of a resource
	// whose lease was acquired.
	OnStartedLeading func(namespace, name string)

	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
}

type campaign struct {
	cancel  context.CancelFunc
	done    chan struct{}
	leading atomic.Bool
}

// LeaseElector runs one Lease based election per resource.
type LeaseElector struct {
	log  logr.Logger
	kube kubernetes.Interface
	opts LeaseElectorOptions

	mu        sync.Mutex
	campaigns map[string]*campaign
}

// NewLeaseElector returns an elector campaigning with kube.
func NewLeaseElector(log logr.Logger, kube kubernetes.Interface, opts LeaseElectorOptions) *LeaseElector {
	if opts.LeaseDuration == 0 {
		opts.LeaseDuration = constants.LeaseDuration
	}
	if opts.RenewDeadline == 0 {
		opts.RenewDeadline = constants.LeaseRenew
	}
	if opts.RetryPeriod == 0 {
		opts.RetryPeriod = constants.LeaseRetry
	}
	return &LeaseElector{
		log:       log.WithName("lease-elector").WithValues("identity", opts.Identity),
		kube:      kube,
		opts:      opts,
		campaigns: map[string]*campaign{},
	}
}

func (e *LeaseElector) IsLeader(namespace, name string) bool {
	lease := LeaseName(namespace, name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.campaigns[lease]; ok {
		return c.leading.Load()
	}

	c, err := e.start(namespace, name, lease)
	if err != nil {
		e.log.Error(err, "Failed to start lease campaign", "lease", lease)
		return false
	}
	e.campaigns[lease] = c
	return false
}

func (e *LeaseElector) start(namespace, name, lease string) (*campaign, error) {
	c := &campaign{done: make(chan struct{})}
	log := e.log.WithValues("lease", lease, "namespace", namespace)

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock: &resourcelock.LeaseLock{
			LeaseMeta:  metav1.ObjectMeta{Name: lease, Namespace: namespace},
			Client:     e.kube.CoordinationV1(),
			LockConfig: resourcelock.ResourceLockConfig{Identity: e.opts.Identity},
		},
		Name:            lease,
		LeaseDuration:   e.opts.LeaseDuration,
		RenewDeadline:   e.opts.RenewDeadline,
		RetryPeriod:     e.opts.RetryPeriod,
		ReleaseOnCancel: true,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(context.Context) {
				log.V(1).Info("Acquired lease")
				c.leading.Store(true)
				if e.opts.OnStartedLeading != nil {
					e.opts.OnStartedLeading(namespace, name)
				}
			},
			OnStoppedLeading: func() {
				if c.leading.Swap(false) {
					log.V(1).Info("Lost lease")
				}
			},
		},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		defer close(c.done)
		elector.Run(ctx)
	}()
	return c, nil
}

func (e *LeaseElector) Release(namespace, name string) {
	lease := LeaseName(namespace, name)
	e.mu.Lock()
	c, ok := e.campaigns[lease]
	delete(e.campaigns, lease)
	e.mu.Unlock()
	if ok {
		c.stop()
	}
}

func (e *LeaseElector) ReleaseAll() {
	e.mu.Lock()
	campaigns := e.campaigns
	e.campaigns = map[string]*campaign{}
	e.mu.Unlock()

	for _, c := range campaigns {
		c.stop()
	}
}

// stop cancels the campaign and waits for the lease to be released.
func (c *campaign) stop() {
	c.cancel()
	<-c.done
	c.leading.Store(false)
}
