// Package upgrade suspends reconciliation while the controller itself is being
// redeployed, both in-process (Coordinator) and across every running controller
// pod (Broadcast).
package upgrade

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/logging"
)

// Outcome is the result of a pause request.
type Outcome int

const (
	// OutcomePaused means reconciliation was paused by this request.
	OutcomePaused Outcome = iota
	// OutcomeAlreadyPaused means a pause was already active and left untouched.
	OutcomeAlreadyPaused
	// OutcomePausedIndefinitely means the resume timer was cancelled.
	OutcomePausedIndefinitely
	// OutcomeNotNeeded means no pause was active, so nothing was extended.
	OutcomeNotNeeded
)

// HTTPStatus maps the outcome to the status code returned by the hook endpoints.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomePaused, OutcomePausedIndefinitely:
		return http.StatusCreated
	case OutcomeAlreadyPaused:
		return http.StatusOK
	default:
		return http.StatusNoContent
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomePaused:
		return "paused"
	case OutcomeAlreadyPaused:
		return "already paused"
	case OutcomePausedIndefinitely:
		return "paused indefinitely"
	default:
		return "pause not needed"
	}
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Clock drives the resume timer. Defaults to the real clock.
	Clock clock.Clock
	// OnIndefinitePause releases reconciliation resources once the pause can no
	// longer end on its own. It must be idempotent.
	OnIndefinitePause func()
	// ShutdownGrace bounds how long Shutdown waits for the resume worker.
	ShutdownGrace time.Duration
}

// Coordinator is the pause state of one controller.
//
// The paused flag is read lock-free by event handlers. Transitions are
// serialized by mu, and every transition that cancels a pending resume bumps
// epoch so that a timer which already fired cannot clear the flag afterwards.
type Coordinator struct {
	log     logr.Logger
	clock   clock.Clock
	release func()
	grace   time.Duration

	paused atomic.Bool

	mu      sync.Mutex
	epoch   uint64
	timer   clock.Timer
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup
}

// NewCoordinator returns an unpaused Coordinator.
func NewCoordinator(log logr.Logger, opts CoordinatorOptions) *Coordinator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = constants.PauseShutdownGrace
	}
	recordPaused(false)
	return &Coordinator{
		log:     log.WithName("upgrade-pause"),
		clock:   clk,
		release: opts.OnIndefinitePause,
		grace:   grace,
		stopCh:  make(chan struct{}),
	}
}

// Paused reports whether reconciliation is currently paused.
func (c *Coordinator) Paused() bool { return c.paused.Load() }

// PreUpgrade pauses reconciliation for d, after which it resumes on its own.
// A request made while already paused does not touch the pending timer.
func (c *Coordinator) PreUpgrade(d time.Duration) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused.Load() {
		c.log.Info("Pre-upgrade pause requested while already paused", "requestedDuration", d)
		pauseTransitionsCounter.WithLabelValues(transitionAlreadyPaused).Inc()
		return OutcomeAlreadyPaused
	}

	c.paused.Store(true)
	recordPaused(true)
	pauseTransitionsCounter.WithLabelValues(transitionPaused).Inc()
	logging.LogAuditEvent(c.log, logging.EventUpgradePaused, map[string]string{"duration": d.String()})

	if c.stopped {
		// The resume worker is gone; the pause can only end with the process.
		return OutcomePaused
	}

	c.epoch++
	c.timer = c.clock.NewTimer(d)
	c.workers.Add(1)
	go c.awaitResume(c.epoch, c.timer)
	return OutcomePaused
}

// PostUpgrade turns an active pause into an indefinite one by cancelling the
// resume timer and releasing reconciliation resources.
func (c *Coordinator) PostUpgrade() Outcome {
	c.mu.Lock()
	if !c.paused.Load() {
		c.mu.Unlock()
		c.log.Info("Post-upgrade pause not needed")
		return OutcomeNotNeeded
	}

	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.log.Info("Pausing indefinitely")
	pauseTransitionsCounter.WithLabelValues(transitionPausedIndefinitely).Inc()
	logging.LogAuditEvent(c.log, logging.EventUpgradePausedIndefinitely, nil)
	if c.release != nil {
		c.release()
	}
	return OutcomePausedIndefinitely
}

func (c *Coordinator) awaitResume(epoch uint64, timer clock.Timer) {
	defer c.workers.Done()

	select {
	case <-timer.C():
		c.resume(epoch)
	case <-c.stopCh:
		timer.Stop()
	}
}

func (c *Coordinator) resume(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || !c.paused.Load() {
		return
	}
	c.paused.Store(false)
	c.timer = nil
	recordPaused(false)
	pauseTransitionsCounter.WithLabelValues(transitionResumed).Inc()
	logging.LogAuditEvent(c.log, logging.EventUpgradeResumed, nil)
}

// Shutdown stops the resume worker and waits up to the grace period for it to
// exit. The pause flag is left as is.
func (c *Coordinator) Shutdown() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.epoch++
		c.mu.Unlock()
		close(c.stopCh)

		done := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
			c.log.V(1).Info("Resume worker stopped")
		case <-time.After(c.grace):
			c.log.Info("Resume worker did not stop within grace period", "grace", c.grace)
		}
	})
}
