package controller

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	corev1listers "k8s.io/client-go/listers/core/v1"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/yaml"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/reconciler"
)

// statusMetadata is stored under crMetadata. ConfigMaps have no generation, so
// the generation is derived from the job ConfigMap resourceVersion seen at the
// last transition.
type statusMetadata struct {
	Generation      int64  `json:"generation"`
	ResourceVersion string `json:"resourceVersion,omitempty"`
}

// StatusConfigMapName returns the name of the status ConfigMap of job.
func StatusConfigMapName(job string) string { return job + constants.SuffixStatusConfigMap }

// JobNameForStatus returns the job a status ConfigMap belongs to.
func JobNameForStatus(statusName string) (string, bool) {
	job, ok := strings.CutSuffix(statusName, constants.SuffixStatusConfigMap)
	return job, ok && job != ""
}

// ParseFlinkJob decodes the FlinkJob carried by a job ConfigMap. The object
// identity always comes from the ConfigMap.
func ParseFlinkJob(cm *corev1.ConfigMap) (*florkv1.FlinkJob, error) {
	raw := cm.Data[constants.KeyCustomResource]
	if strings.TrimSpace(raw) == "" {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("ConfigMap %s/%s has no %s key", cm.Namespace, cm.Name, constants.KeyCustomResource))
	}
	job := &florkv1.FlinkJob{}
	if err := yaml.Unmarshal([]byte(raw), job); err != nil {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("ConfigMap %s/%s: invalid %s: %w", cm.Namespace, cm.Name, constants.KeyCustomResource, err))
	}
	job.APIVersion = florkv1.GroupVersion.String()
	job.Kind = constants.KindFlinkJob
	job.Namespace = cm.Namespace
	job.Name = cm.Name
	job.UID = cm.UID
	job.ResourceVersion = cm.ResourceVersion
	job.Status = florkv1.FlinkJobStatus{}
	job.Generation = 0
	return job, nil
}

func readStatus(cm *corev1.ConfigMap) (statusMetadata, florkv1.FlinkJobStatus, error) {
	var meta statusMetadata
	var status florkv1.FlinkJobStatus
	if cm == nil {
		return meta, status, nil
	}
	if raw := cm.Data[constants.KeyCRMetadata]; strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
			return meta, status, fmt.Errorf("invalid %s in %s: %w", constants.KeyCRMetadata, cm.Name, err)
		}
	}
	if raw := cm.Data[constants.KeyCRStatus]; strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &status); err != nil {
			return meta, status, fmt.Errorf("invalid %s in %s: %w", constants.KeyCRStatus, cm.Name, err)
		}
	}
	return meta, status, nil
}

// observedGeneration bumps the stored generation once the job ConfigMap changed.
func observedGeneration(meta statusMetadata, resourceVersion string) int64 {
	if meta.ResourceVersion == resourceVersion {
		return meta.Generation
	}
	return meta.Generation + 1
}

// configMapConverter builds targets from job ConfigMaps, overlaying the state
// recorded in their status ConfigMaps.
func configMapConverter(statuses corev1listers.ConfigMapLister) reconciler.Converter {
	return func(obj any) (*reconciler.Target, error) {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			obj = tomb.Obj
		}
		cm, ok := obj.(*corev1.ConfigMap)
		if !ok {
			return nil, operatorerrors.ContractViolation("expected *v1.ConfigMap, got %T", obj)
		}
		job, err := ParseFlinkJob(cm)
		if err != nil {
			return nil, err
		}

		statusCM, err := statuses.ConfigMaps(cm.Namespace).Get(StatusConfigMapName(cm.Name))
		switch {
		case apierrors.IsNotFound(err):
			statusCM = nil
		case err != nil:
			return nil, err
		}
		meta, status, err := readStatus(statusCM)
		if err != nil {
			return nil, operatorerrors.WrapPermanentConfig(err)
		}
		job.Status = status
		job.Generation = observedGeneration(meta, cm.ResourceVersion)

		target := reconciler.TargetFromFlinkJob(job)
		target.Object = cm
		return target, nil
	}
}

func newStatusConfigMap(namespace, job string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      StatusConfigMapName(job),
			Namespace: namespace,
			Labels: map[string]string{
				constants.LabelFlinkJobStatus: constants.LabelValueTrue,
				constants.LabelValidity:       constants.LabelValueFalse,
				constants.LabelAppManagedBy:   constants.LabelValueAppManagedByFlork,
			},
		},
		Data: map[string]string{
			constants.KeyCRMetadata: "",
			constants.KeyCRStatus:   "",
		},
	}
}

// updateStatusConfigMap applies mutate to the status ConfigMap of job,
// creating it first when it does not exist.
func updateStatusConfigMap(ctx context.Context, kube kubernetes.Interface, namespace, job string, mutate func(*corev1.ConfigMap) error) error {
	configMaps := kube.CoreV1().ConfigMaps(namespace)
	name := StatusConfigMapName(job)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		current, err := configMaps.Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			cm := newStatusConfigMap(namespace, job)
			if err := mutate(cm); err != nil {
				return err
			}
			_, err = configMaps.Create(ctx, cm, metav1.CreateOptions{})
			if apierrors.IsAlreadyExists(err) {
				return apierrors.NewConflict(corev1.Resource("configmaps"), name, err)
			}
			return err
		}
		if err != nil {
			return err
		}

		cm := current.DeepCopy()
		if cm.Labels == nil {
			cm.Labels = map[string]string{}
		}
		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		if err := mutate(cm); err != nil {
			return err
		}
		_, err = configMaps.Update(ctx, cm, metav1.UpdateOptions{})
		return err
	})
}

// recordException marks the status ConfigMap of job invalid with cause.
func recordException(ctx context.Context, kube kubernetes.Interface, namespace, job string, cause error) error {
	return updateStatusConfigMap(ctx, kube, namespace, job, func(cm *corev1.ConfigMap) error {
		cm.Data[constants.KeyException] = cause.Error()
		cm.Labels[constants.LabelValidity] = constants.LabelValueFalse
		return nil
	})
}

// ConfigMapStatusWriter records phase transitions in status ConfigMaps.
type ConfigMapStatusWriter struct {
	Kube kubernetes.Interface
}

func (w *ConfigMapStatusWriter) WriteStatus(ctx context.Context, target *reconciler.Target, status reconciler.Status) error {
	resourceVersion := ""
	if cm, ok := target.Object.(*corev1.ConfigMap); ok {
		resourceVersion = cm.ResourceVersion
	}

	err := updateStatusConfigMap(ctx, w.Kube, target.Namespace, target.Name, func(cm *corev1.ConfigMap) error {
		_, previous, err := readStatus(cm)
		if err != nil {
			previous = florkv1.FlinkJobStatus{}
		}
		previous.FlorkPhase = status.Phase
		previous.GenerationDuringLastTransition = status.Generation

		rawStatus, err := yaml.Marshal(previous)
		if err != nil {
			return err
		}
		rawMeta, err := yaml.Marshal(statusMetadata{Generation: status.Generation, ResourceVersion: resourceVersion})
		if err != nil {
			return err
		}
		cm.Data[constants.KeyCRStatus] = string(rawStatus)
		cm.Data[constants.KeyCRMetadata] = string(rawMeta)

		if status.Err != nil {
			cm.Data[constants.KeyException] = status.Err.Error()
			cm.Labels[constants.LabelValidity] = constants.LabelValueFalse
			return nil
		}
		delete(cm.Data, constants.KeyException)
		cm.Labels[constants.LabelValidity] = constants.LabelValueTrue
		return nil
	})
	if err != nil {
		if operatorerrors.IsTransientKubernetesAPI(err) {
			return operatorerrors.WrapTransientKubernetesAPI(err)
		}
		return fmt.Errorf("failed to update status ConfigMap of %s: %w", target.Key(), err)
	}
	return nil
}
