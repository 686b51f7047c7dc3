// Package errors classifies failures seen by the controller, the admission
// handlers and the hooks binary so callers can decide between retrying,
// surfacing a configuration problem and aborting.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
)

// ErrTransientConnection indicates a network failure talking to a pod or object store.
var ErrTransientConnection = errors.New("transient connection error")

// ErrTransientKubernetesAPI indicates a retryable API server failure (throttling, timeouts, 5xx).
var ErrTransientKubernetesAPI = errors.New("transient Kubernetes API error")

// ErrPermanentConfig indicates a configuration error that requires user intervention.
// Controller startup aborts on it; reconcilers do not requeue it.
var ErrPermanentConfig = errors.New("permanent configuration error")

// ErrPermanentPrerequisitesMissing indicates a dependency (CRD, Service, port) does not exist.
var ErrPermanentPrerequisitesMissing = errors.New("permanent prerequisites missing")

// ErrContractViolation indicates a caller handed a component an object it never accepts.
// It is distinct from a validation rejection.
var ErrContractViolation = errors.New("contract violation")

// ErrNotFound indicates a named object could not be located.
var ErrNotFound = errors.New("not found")

var transientConnectionPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"context deadline exceeded",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"tls handshake timeout",
	"dial tcp",
	"broken pipe",
	"eof",
}

// IsTransientConnection reports whether err looks like a retryable network failure.
func IsTransientConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientConnection) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientConnectionPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsTransientKubernetesAPI reports whether err is an API server status worth retrying.
func IsTransientKubernetesAPI(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientKubernetesAPI) {
		return true
	}
	return apierrors.IsTooManyRequests(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) ||
		apierrors.IsConflict(err)
}

// WrapTransientConnection wraps an error as a transient connection error.
// Errors that already classify as transient connection errors are returned unchanged.
func WrapTransientConnection(err error) error {
	if err == nil || IsTransientConnection(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientConnection, err)
}

// WrapTransientKubernetesAPI wraps an error as a transient Kubernetes API error.
func WrapTransientKubernetesAPI(err error) error {
	if err == nil || IsTransientKubernetesAPI(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientKubernetesAPI, err)
}

// WrapPermanentConfig wraps an error as a permanent configuration error.
func WrapPermanentConfig(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanentConfig, err)
}

// WrapPermanentPrerequisitesMissing wraps an error as a missing prerequisite.
func WrapPermanentPrerequisitesMissing(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanentPrerequisitesMissing, err)
}

// ContractViolation builds an ErrContractViolation describing the unexpected value.
func ContractViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound for the given kind and name.
func NotFound(kind, namespace, name string) error {
	return fmt.Errorf("%w: %s %s/%s", ErrNotFound, kind, namespace, name)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return IsTransientConnection(err) || IsTransientKubernetesAPI(err)
}

// IsPermanent reports whether err requires user intervention.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPermanentConfig) ||
		errors.Is(err, ErrPermanentPrerequisitesMissing) ||
		errors.Is(err, ErrContractViolation)
}

// IsNotFound reports whether err is an ErrNotFound or an API server NotFound status.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) || apierrors.IsNotFound(err)
}

// ShouldRequeue decides whether a work item that failed with err goes back on the queue.
// Returns (shouldRequeue, requeueAfter); a zero delay leaves backoff to the rate limiter.
func ShouldRequeue(err error) (bool, time.Duration) {
	switch {
	case err == nil:
		return false, 0
	case IsPermanent(err):
		return false, 0
	case IsTransient(err):
		return true, 5 * time.Second
	default:
		return true, 0
	}
}

// IsCRDMissingError reports whether err indicates that a CRD is not installed.
func IsCRDMissingError(err error) bool {
	if err == nil {
		return false
	}
	if meta.IsNoMatchError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no matches for kind") ||
		strings.Contains(msg, "no kind is registered for the type") ||
		strings.Contains(msg, "could not find the requested resource")
}

// WrapCRDMissing converts a missing-CRD error into a permanent configuration error.
func WrapCRDMissing(err error) error {
	if err == nil {
		return nil
	}
	if IsCRDMissingError(err) {
		return WrapPermanentConfig(fmt.Errorf("CRD not installed: %w", err))
	}
	return err
}
