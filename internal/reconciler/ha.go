package reconciler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/flinkconf"
	"github.com/flork/flork-operator/internal/logging"
	"github.com/flork/flork-operator/internal/storage"
)

// DefaultHACleanupTimeout bounds the HA ConfigMap cleanup of one cluster.
const DefaultHACleanupTimeout = time.Minute

// HACleaner removes the high-availability state Flink leaves behind.
type HACleaner struct {
	Log     logr.Logger
	Kube    kubernetes.Interface
	Storage storage.HAStorageCleaner

	Interval time.Duration
	Timeout  time.Duration
}

// HASelector selects the HA ConfigMaps of cluster name.
func HASelector(name string) string {
	return labels.SelectorFromSet(labels.Set{
		constants.LabelHAApp:           name,
		constants.LabelHAConfigMapType: constants.LabelValueHAConfigMapType,
		constants.LabelHAType:          constants.LabelValueHAType,
	}).String()
}

// Applies reports whether target asked for HA cleanup.
func (h *HACleaner) Applies(target *Target) bool {
	src := target.Source
	return flinkconf.HighAvailabilityEnabled(src.FlinkConf) && src.FlorkConf.CleansHighAvailability()
}

// Clean deletes the HA ConfigMaps of target until none remain, then its HA
// storage directory.
func (h *HACleaner) Clean(ctx context.Context, target *Target) error {
	interval := h.Interval
	if interval <= 0 {
		interval = constants.HACleanupInterval
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHACleanupTimeout
	}

	configMaps := h.Kube.CoreV1().ConfigMaps(target.Namespace)
	selector := HASelector(target.Name)
	deleted := 0

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		list, err := configMaps.List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			h.Log.V(1).Info("Failed to list HA ConfigMaps; retrying", "error", err.Error())
			return false, nil
		}
		if len(list.Items) == 0 {
			return true, nil
		}
		for _, cm := range list.Items {
			err := configMaps.Delete(ctx, cm.Name, metav1.DeleteOptions{})
			if err != nil && !apierrors.IsNotFound(err) {
				h.Log.V(1).Info("Failed to delete HA ConfigMap; retrying", "configmap", cm.Name, "error", err.Error())
				continue
			}
			deleted++
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("HA ConfigMaps of %s were not removed: %w", target.Key(), err)
	}

	objects := 0
	if h.Storage != nil {
		conf := make(map[string]string, len(target.Source.FlinkConf))
		for k, v := range target.Source.FlinkConf {
			conf[k] = v
		}
		objects, err = h.Storage.CleanHighAvailability(ctx, conf, target.Name)
		if err != nil {
			return fmt.Errorf("HA storage of %s was not removed: %w", target.Key(), err)
		}
	}

	logging.LogAuditEvent(h.Log, logging.EventHighAvailabilityCleaned, map[string]string{
		"namespace":  target.Namespace,
		"name":       target.Name,
		"configmaps": strconv.Itoa(deleted),
		"objects":    strconv.Itoa(objects),
	})
	return nil
}
