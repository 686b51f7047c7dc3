package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/logging"
)

// Parser is a cron parser configured for standard 5-field cron expressions.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// StatusJanitor deletes status ConfigMaps whose job ConfigMap is gone. Deletes
// that happen while reconciliation is paused are not observed by the watches,
// so their status ConfigMaps are left behind until the next sweep.
type StatusJanitor struct {
	log       logr.Logger
	kube      kubernetes.Interface
	namespace string
	schedule  cron.Schedule
	paused    func() bool
}

// NewStatusJanitor returns a janitor for namespace running on the cron expression schedule.
func NewStatusJanitor(log logr.Logger, kube kubernetes.Interface, namespace, schedule string, paused func() bool) (*StatusJanitor, error) {
	if schedule == "" {
		schedule = constants.DefaultStatusJanitorSchedule
	}
	parsed, err := Parser.Parse(schedule)
	if err != nil {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("invalid %s %q: %w", constants.EnvStatusJanitorSchedule, schedule, err))
	}
	if paused == nil {
		paused = func() bool { return false }
	}
	return &StatusJanitor{
		log:       log.WithName("status-janitor"),
		kube:      kube,
		namespace: namespace,
		schedule:  parsed,
		paused:    paused,
	}, nil
}

// Sweep deletes every orphaned status ConfigMap and returns how many were removed.
func (j *StatusJanitor) Sweep(ctx context.Context) (int, error) {
	configMaps := j.kube.CoreV1().ConfigMaps(j.namespace)

	// Status ConfigMaps are listed before jobs, so a job created in between
	// is already live when its status ConfigMap is judged.
	statuses, err := configMaps.List(ctx, metav1.ListOptions{LabelSelector: constants.SelectorStatusConfigMaps})
	if err != nil {
		return 0, fmt.Errorf("failed to list status ConfigMaps: %w", err)
	}

	jobs, err := configMaps.List(ctx, metav1.ListOptions{LabelSelector: constants.SelectorOuterJobConfigMaps})
	if err != nil {
		return 0, fmt.Errorf("failed to list job ConfigMaps: %w", err)
	}
	live := make(map[string]struct{}, len(jobs.Items))
	for _, cm := range jobs.Items {
		live[cm.Name] = struct{}{}
	}

	deleted := 0
	var errs []error
	for _, cm := range statuses.Items {
		job, ok := JobNameForStatus(cm.Name)
		if !ok {
			continue
		}
		if _, exists := live[job]; exists {
			continue
		}
		err := configMaps.Delete(ctx, cm.Name, metav1.DeleteOptions{
			Preconditions: &metav1.Preconditions{UID: &cm.UID},
		})
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete status ConfigMap %s: %w", cm.Name, err))
			continue
		}
		deleted++
		logging.LogAuditEvent(j.log, logging.EventStatusConfigMapDeleted, map[string]string{
			"namespace": j.namespace,
			"configmap": cm.Name,
			"job":       job,
			"reason":    "orphaned",
		})
	}
	janitorDeletedTotal.Add(float64(deleted))
	return deleted, errors.Join(errs...)
}

func (j *StatusJanitor) run(ctx context.Context) {
	if j.paused() {
		janitorRunsTotal.WithLabelValues(janitorResultSkipped).Inc()
		j.log.V(1).Info("Reconciliation paused; skipping sweep")
		return
	}
	deleted, err := j.Sweep(ctx)
	if err != nil {
		janitorRunsTotal.WithLabelValues(janitorResultError).Inc()
		j.log.Error(err, "Status sweep failed", "deleted", deleted)
		return
	}
	janitorRunsTotal.WithLabelValues(janitorResultSuccess).Inc()
	if deleted > 0 {
		j.log.Info("Deleted orphaned status ConfigMaps", "count", deleted)
	}
}

// Start implements manager.Runnable. It sweeps on schedule until ctx is cancelled.
func (j *StatusJanitor) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(Parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() { j.run(ctx) }))
	c.Start()
	j.log.Info("Status janitor started", "namespace", j.namespace)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// NeedLeaderElection implements manager.LeaderElectionRunnable. Sweeps are
// idempotent and run on every replica.
func (j *StatusJanitor) NeedLeaderElection() bool { return false }
