package upgrade

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestCoordinator(t *testing.T, release func()) (*Coordinator, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Now())
	c := NewCoordinator(logr.Discard(), CoordinatorOptions{
		Clock:             clk,
		OnIndefinitePause: release,
		ShutdownGrace:     time.Second,
	})
	t.Cleanup(c.Shutdown)
	return c, clk
}

func TestOutcomeHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusCreated, OutcomePaused.HTTPStatus())
	assert.Equal(t, http.StatusOK, OutcomeAlreadyPaused.HTTPStatus())
	assert.Equal(t, http.StatusCreated, OutcomePausedIndefinitely.HTTPStatus())
	assert.Equal(t, http.StatusNoContent, OutcomeNotNeeded.HTTPStatus())
}

func TestPreUpgradePausesAndTimerResumes(t *testing.T) {
	c, clk := newTestCoordinator(t, nil)

	require.Equal(t, OutcomePaused, c.PreUpgrade(10*time.Second))
	require.True(t, c.Paused())
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	clk.Step(9 * time.Second)
	assert.True(t, c.Paused())

	clk.Step(time.Second)
	require.Eventually(t, func() bool { return !c.Paused() }, time.Second, time.Millisecond)
}

func TestRepeatedPreUpgradeKeepsOriginalTimer(t *testing.T) {
	c, clk := newTestCoordinator(t, nil)

	require.Equal(t, OutcomePaused, c.PreUpgrade(10*time.Second))
	require.Equal(t, OutcomeAlreadyPaused, c.PreUpgrade(time.Hour))
	require.Equal(t, OutcomeAlreadyPaused, c.PreUpgrade(time.Second))
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	clk.Step(time.Second)
	assert.True(t, c.Paused(), "a shorter second duration must not shrink the timer")

	clk.Step(9 * time.Second)
	require.Eventually(t, func() bool { return !c.Paused() }, time.Second, time.Millisecond)

	require.Equal(t, OutcomePaused, c.PreUpgrade(time.Minute), "a new pause is possible after the timer fired")
}

func TestPostUpgradeWhileUnpausedIsNotNeeded(t *testing.T) {
	var released atomic.Int32
	c, _ := newTestCoordinator(t, func() { released.Add(1) })

	assert.Equal(t, OutcomeNotNeeded, c.PostUpgrade())
	assert.Equal(t, OutcomeNotNeeded, c.PostUpgrade())
	assert.False(t, c.Paused())
	assert.Equal(t, int32(0), released.Load())
}

func TestPostUpgradeCancelsTimer(t *testing.T) {
	var released atomic.Int32
	c, clk := newTestCoordinator(t, func() { released.Add(1) })

	require.Equal(t, OutcomePaused, c.PreUpgrade(10*time.Second))
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	require.Equal(t, OutcomePausedIndefinitely, c.PostUpgrade())
	assert.Equal(t, int32(1), released.Load())

	clk.Step(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.Paused(), "cancelled timer must not resume")

	assert.Equal(t, OutcomeAlreadyPaused, c.PreUpgrade(time.Second))
	assert.Equal(t, OutcomePausedIndefinitely, c.PostUpgrade())
}

func TestTimerAndPostUpgradeRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, clk := newTestCoordinator(t, nil)
		require.Equal(t, OutcomePaused, c.PreUpgrade(time.Second))
		require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

		var wg sync.WaitGroup
		var outcome Outcome
		wg.Add(2)
		go func() {
			defer wg.Done()
			clk.Step(time.Second)
		}()
		go func() {
			defer wg.Done()
			outcome = c.PostUpgrade()
		}()
		wg.Wait()

		switch outcome {
		case OutcomePausedIndefinitely:
			// The timer may still be delivering; it must lose.
			time.Sleep(5 * time.Millisecond)
			assert.True(t, c.Paused())
		case OutcomeNotNeeded:
			assert.False(t, c.Paused())
		default:
			t.Fatalf("unexpected outcome %v", outcome)
		}
	}
}

func TestShutdownStopsResumeWorker(t *testing.T) {
	c, clk := newTestCoordinator(t, nil)
	require.Equal(t, OutcomePaused, c.PreUpgrade(time.Minute))
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	clk.Step(time.Hour)
	assert.True(t, c.Paused())
	c.Shutdown()
}
