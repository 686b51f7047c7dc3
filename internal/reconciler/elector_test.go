package reconciler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"
)

func TestLeaseName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "flork-lease-team-a-wordcount", LeaseName("team-a", "wordcount"))
}

func TestAlwaysLeader(t *testing.T) {
	t.Parallel()
	var e Elector = AlwaysLeader{}
	assert.True(t, e.IsLeader("ns", "name"))
	e.Release("ns", "name")
	e.ReleaseAll()
}

func TestLeaseElectorAcquiresAndReleases(t *testing.T) {
	t.Parallel()

	kube := fake.NewSimpleClientset()
	var started atomic.Int32
	elector := NewLeaseElector(logr.Discard(), kube, LeaseElectorOptions{
		Identity:         "replica-1",
		OnStartedLeading: func(string, string) { started.Add(1) },
		LeaseDuration:    2 * time.Second,
		RenewDeadline:    time.Second,
		RetryPeriod:      100 * time.Millisecond,
	})

	assert.False(t, elector.IsLeader("team-a", "wordcount"), "the first call only starts the campaign")
	require.Eventually(t, func() bool { return elector.IsLeader("team-a", "wordcount") }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, 10*time.Millisecond)

	lease, err := kube.CoordinationV1().Leases("team-a").Get(context.Background(), "flork-lease-team-a-wordcount", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "replica-1", ptr.Deref(lease.Spec.HolderIdentity, ""))

	elector.Release("team-a", "wordcount")
	lease, err = kube.CoordinationV1().Leases("team-a").Get(context.Background(), "flork-lease-team-a-wordcount", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Empty(t, ptr.Deref(lease.Spec.HolderIdentity, ""), "the lease is released on cancel")
}

func TestLeaseElectorSecondReplicaWaits(t *testing.T) {
	t.Parallel()

	kube := fake.NewSimpleClientset()
	opts := LeaseElectorOptions{LeaseDuration: 2 * time.Second, RenewDeadline: time.Second, RetryPeriod: 100 * time.Millisecond}

	opts.Identity = "replica-1"
	first := NewLeaseElector(logr.Discard(), kube, opts)
	opts.Identity = "replica-2"
	second := NewLeaseElector(logr.Discard(), kube, opts)
	t.Cleanup(first.ReleaseAll)
	t.Cleanup(second.ReleaseAll)

	first.IsLeader("team-a", "wordcount")
	require.Eventually(t, func() bool { return first.IsLeader("team-a", "wordcount") }, 5*time.Second, 20*time.Millisecond)

	second.IsLeader("team-a", "wordcount")
	time.Sleep(300 * time.Millisecond)
	assert.False(t, second.IsLeader("team-a", "wordcount"))
}
