package reconciler

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/util/retry"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

// Status is a phase transition of a target.
type Status struct {
	Phase florkv1.FlorkPhase
	// Generation is the generation the transition was made for.
	Generation int64
	// Err is the processing error behind a FAILED phase.
	Err error
}

// StatusWriter persists phase transitions.
type StatusWriter interface {
	WriteStatus(ctx context.Context, target *Target, status Status) error
}

// CRStatusWriter writes the status subresource of FlinkJob and FlinkSession objects.
type CRStatusWriter struct {
	Client dynamic.Interface
}

// GVRForKind returns the resource of a Flink kind.
func GVRForKind(kind string) (schema.GroupVersionResource, error) {
	switch kind {
	case constants.KindFlinkJob:
		return florkv1.FlinkJobGVR, nil
	case constants.KindFlinkSession:
		return florkv1.FlinkSessionGVR, nil
	default:
		return schema.GroupVersionResource{}, operatorerrors.ContractViolation("unsupported kind %q", kind)
	}
}

func (w *CRStatusWriter) WriteStatus(ctx context.Context, target *Target, status Status) error {
	gvr, err := GVRForKind(target.Kind)
	if err != nil {
		return err
	}
	resource := w.Client.Resource(gvr).Namespace(target.Namespace)

	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		current, err := resource.Get(ctx, target.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		obj := current.DeepCopy()
		if err := unstructured.SetNestedField(obj.Object, string(status.Phase), "status", "florkPhase"); err != nil {
			return err
		}
		if err := unstructured.SetNestedField(obj.Object, status.Generation, "status", "generationDuringLastTransition"); err != nil {
			return err
		}
		_, err = resource.UpdateStatus(ctx, obj, metav1.UpdateOptions{})
		return err
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		if operatorerrors.IsTransientKubernetesAPI(err) {
			return operatorerrors.WrapTransientKubernetesAPI(err)
		}
		return fmt.Errorf("failed to update status of %s %s: %w", target.Kind, target.Key(), err)
	}
	return nil
}
