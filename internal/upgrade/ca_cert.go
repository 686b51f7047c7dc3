package upgrade

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"

	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

var ErrCACertMissing = errors.New("ca.crt missing from secret")

// ReadCACertSecret returns a pool holding the "ca.crt" entry of the named Secret.
// The pool is used to verify the certificate chain presented by controller pods.
func ReadCACertSecret(ctx context.Context, secrets corev1client.SecretInterface, name string) (*x509.CertPool, error) {
	secret, err := secrets.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, operatorerrors.WrapPermanentPrerequisitesMissing(fmt.Errorf("CA secret %s: %w", name, err))
		}
		return nil, err
	}
	caCert, ok := secret.Data["ca.crt"]
	if !ok {
		return nil, ErrCACertMissing
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA secret %s does not contain a PEM certificate", name)
	}
	return pool, nil
}
