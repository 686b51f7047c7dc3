// Package reconciler drives Flink resources toward their desired state: it
// renders their configuration, deploys the cluster, records the phase and
// cleans up after deletion.
package reconciler

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/cache"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/flinkconf"
)

// Target is a Flink resource normalized for reconciliation.
type Target struct {
	Kind       string
	Namespace  string
	Name       string
	Generation int64

	Phase                          florkv1.FlorkPhase
	GenerationDuringLastTransition int64

	JobClassName string
	JobArgs      []string

	Source *flinkconf.Source
	// Object is the object the target was built from. Status writers use it.
	Object runtime.Object
}

// Key returns the work queue key of the target.
func (t *Target) Key() string { return t.Namespace + "/" + t.Name }

// Session reports whether the target is a session cluster.
func (t *Target) Session() bool { return t.Kind == constants.KindFlinkSession }

// Settled reports whether the current generation reached a final phase. A
// FAILED generation waits for a spec change.
func (t *Target) Settled() bool {
	if t.GenerationDuringLastTransition != t.Generation {
		return false
	}
	return t.Phase == florkv1.FlorkPhaseDeployed || t.Phase == florkv1.FlorkPhaseFailed
}

// Converter turns an informer object into a Target.
type Converter func(obj any) (*Target, error)

// TargetFromFlinkJob builds a Target from a FlinkJob.
func TargetFromFlinkJob(job *florkv1.FlinkJob) *Target {
	return &Target{
		Kind:                           constants.KindFlinkJob,
		Namespace:                      job.Namespace,
		Name:                           job.Name,
		Generation:                     job.Generation,
		Phase:                          job.Status.FlorkPhase,
		GenerationDuringLastTransition: job.Status.GenerationDuringLastTransition,
		JobClassName:                   job.Spec.JobClassName,
		JobArgs:                        job.Spec.JobArgs,
		Source:                         flinkconf.FromFlinkJob(job),
		Object:                         job,
	}
}

// TargetFromFlinkSession builds a Target from a FlinkSession.
func TargetFromFlinkSession(session *florkv1.FlinkSession) *Target {
	return &Target{
		Kind:                           constants.KindFlinkSession,
		Namespace:                      session.Namespace,
		Name:                           session.Name,
		Generation:                     session.Generation,
		Phase:                          session.Status.FlorkPhase,
		GenerationDuringLastTransition: session.Status.GenerationDuringLastTransition,
		Source:                         flinkconf.FromFlinkSession(session),
		Object:                         session,
	}
}

// UnstructuredConverter converts objects delivered by a dynamic informer of kind.
func UnstructuredConverter(kind string) Converter {
	return func(obj any) (*Target, error) {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			obj = tomb.Obj
		}
		u, ok := obj.(*unstructured.Unstructured)
		if !ok {
			return nil, operatorerrors.ContractViolation("expected *unstructured.Unstructured, got %T", obj)
		}

		var target *Target
		switch kind {
		case constants.KindFlinkJob:
			job := &florkv1.FlinkJob{}
			if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, job); err != nil {
				return nil, fmt.Errorf("failed to decode %s %s/%s: %w", kind, u.GetNamespace(), u.GetName(), err)
			}
			target = TargetFromFlinkJob(job)
		case constants.KindFlinkSession:
			session := &florkv1.FlinkSession{}
			if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, session); err != nil {
				return nil, fmt.Errorf("failed to decode %s %s/%s: %w", kind, u.GetNamespace(), u.GetName(), err)
			}
			target = TargetFromFlinkSession(session)
		default:
			return nil, operatorerrors.ContractViolation("unsupported kind %q", kind)
		}
		target.Object = u
		return target, nil
	}
}
