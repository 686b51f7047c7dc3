// Package validator implements the validating admission webhooks for FlinkJob
// and FlinkSession resources.
package validator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/logging"
)

// Validator admits or denies writes of one Flink resource kind.
type Validator struct {
	logger  logr.Logger
	decoder admission.Decoder
	kind    string
	newObj  func() runtime.Object
}

// NewFlinkJobValidator returns the validator served at the FlinkJob admission path.
func NewFlinkJobValidator(logger logr.Logger, decoder admission.Decoder) *Validator {
	return &Validator{
		logger:  logger.WithName("flinkjob-validator"),
		decoder: decoder,
		kind:    constants.KindFlinkJob,
		newObj:  func() runtime.Object { return &florkv1.FlinkJob{} },
	}
}

// NewFlinkSessionValidator returns the validator served at the FlinkSession admission path.
func NewFlinkSessionValidator(logger logr.Logger, decoder admission.Decoder) *Validator {
	return &Validator{
		logger:  logger.WithName("flinksession-validator"),
		decoder: decoder,
		kind:    constants.KindFlinkSession,
		newObj:  func() runtime.Object { return &florkv1.FlinkSession{} },
	}
}

// Handle decodes the submitted object and applies the validation rules.
// Rule violations are returned as denials inside a successful review; a request
// for a kind this validator does not serve is answered with an internal error.
func (v *Validator) Handle(_ context.Context, req admission.Request) admission.Response {
	if req.Kind.Kind != v.kind || req.Kind.Group != florkv1.GroupVersion.Group {
		return withUID(req, admission.Errored(http.StatusInternalServerError,
			operatorerrors.ContractViolation("%s validator received %s", v.kind, req.Kind.String())))
	}
	if req.Operation == admissionv1.Delete {
		return allowed(req)
	}

	obj := v.newObj()
	if err := v.decoder.DecodeRaw(req.Object, obj); err != nil {
		return withUID(req, admission.Errored(http.StatusBadRequest, fmt.Errorf("failed to decode %s: %w", v.kind, err)))
	}

	msg, err := Evaluate(obj)
	if err != nil {
		return withUID(req, admission.Errored(http.StatusInternalServerError, err))
	}
	if msg == "" {
		recordDecision(v.kind, true)
		return allowed(req)
	}

	recordDecision(v.kind, false)
	logging.LogAuditEvent(v.logger, logging.EventAdmissionDenied, map[string]string{
		"kind":      v.kind,
		"namespace": req.Namespace,
		"name":      req.Name,
		"user":      req.UserInfo.Username,
		"reason":    msg,
	})
	return denied(req, msg)
}

// Evaluate applies the rules for the concrete type of obj and returns the
// denial message, or "" when the object is admissible. Any type other than
// FlinkJob or FlinkSession is a contract violation.
func Evaluate(obj runtime.Object) (string, error) {
	switch o := obj.(type) {
	case *florkv1.FlinkJob:
		return ValidateFlinkJobSpec(&o.Spec), nil
	case *florkv1.FlinkSession:
		return ValidateFlinkSessionSpec(&o.Spec), nil
	default:
		return "", operatorerrors.ContractViolation("cannot validate object of type %T", obj)
	}
}

func allowed(req admission.Request) admission.Response {
	return admission.Response{AdmissionResponse: admissionv1.AdmissionResponse{
		UID:     req.UID,
		Allowed: true,
	}}
}

func denied(req admission.Request, msg string) admission.Response {
	resp := admission.Denied(msg)
	resp.Result.Code = http.StatusBadRequest
	resp.Result.Reason = metav1.StatusReasonBadRequest
	return withUID(req, resp)
}

func withUID(req admission.Request, resp admission.Response) admission.Response {
	resp.UID = req.UID
	return resp
}
