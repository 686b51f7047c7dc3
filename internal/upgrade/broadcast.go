package upgrade

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

// BroadcastRequest identifies the controller pods to notify.
type BroadcastRequest struct {
	Phase       Phase
	Namespace   string
	ServiceName string
	// PathPrefix is prepended to the hook path.
	PathPrefix string
	// PortName selects a service port by name. Empty means the first port.
	PortName string
	// PauseSeconds is sent as the body of pre-upgrade requests.
	PauseSeconds int64
}

// BroadcastResult summarizes a broadcast.
type BroadcastResult struct {
	// Skipped explains why no request was sent, if none was.
	Skipped string
	Port    int32
	Targets []string
	Failed  int
}

// Broadcaster drives the upgrade hooks of every pod behind a Service.
type Broadcaster struct {
	log  logr.Logger
	kube kubernetes.Interface
	http *http.Client
}

// NewBroadcaster returns a Broadcaster. httpClient should come from NewHookHTTPClient.
func NewBroadcaster(log logr.Logger, kube kubernetes.Interface, httpClient *http.Client) *Broadcaster {
	return &Broadcaster{log: log.WithName("upgrade-broadcast"), kube: kube, http: httpClient}
}

// NewHookHTTPClient returns a client that verifies the certificate chain of
// the pods against roots (system roots when nil) but not their host name,
// since pods are addressed by IP. skipVerify disables chain verification too.
func NewHookHTTPClient(roots *x509.CertPool, skipVerify bool) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Host name verification is replaced by VerifyConnection below.
		InsecureSkipVerify: true, //#nosec G402 -- chain is verified in VerifyConnection
	}
	if !skipVerify {
		tlsConfig.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errors.New("pod presented no certificate")
			}
			intermediates := x509.NewCertPool()
			for _, cert := range cs.PeerCertificates[1:] {
				intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
				Roots:         roots,
				Intermediates: intermediates,
			})
			return err
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Transport: transport, Timeout: constants.BroadcastRequestTimeout}
}

// Run resolves the target pods and sends the phase's hook request to each of them.
// It returns an error only for precondition failures; per-pod failures are logged
// and counted in the result.
func (b *Broadcaster) Run(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if req.ServiceName == "" {
		return nil, operatorerrors.WrapPermanentConfig(errors.New("must specify the controller's service name"))
	}
	log := b.log.WithValues("service", req.ServiceName, "namespace", req.Namespace, "phase", req.Phase)

	svc, err := b.kube.CoreV1().Services(req.Namespace).Get(ctx, req.ServiceName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, operatorerrors.NotFound("Service", req.Namespace, req.ServiceName)
		}
		return nil, fmt.Errorf("failed to get service %s: %w", req.ServiceName, err)
	}
	if len(svc.Spec.Ports) == 0 {
		return nil, operatorerrors.WrapPermanentPrerequisitesMissing(fmt.Errorf("service %s does not specify any ports", req.ServiceName))
	}

	target, err := ServiceTargetPort(svc, req.PortName)
	if err != nil {
		return nil, err
	}

	result := &BroadcastResult{}
	if len(svc.Spec.Selector) == 0 {
		result.Skipped = "service has no selector"
		log.Info("No pods can be selected; nothing to do", "reason", result.Skipped)
		return result, nil
	}

	pods, err := b.kube.CoreV1().Pods(req.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(svc.Spec.Selector).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods of service %s: %w", req.ServiceName, err)
	}
	log.Info("Found pods for service", "count", len(pods.Items))
	if len(pods.Items) == 0 {
		result.Skipped = "no pods are currently active"
		log.Info("No pods are currently active")
		return result, nil
	}

	if req.Phase == PhasePost {
		if generations := CountGenerations(pods.Items); generations < 2 {
			result.Skipped = fmt.Sprintf("only %d pod template generation(s) found", generations)
			log.Info("Exiting early because no replacement is in progress", "generations", generations)
			return result, nil
		}
	}

	ips := PodIPs(pods.Items)
	if len(ips) == 0 {
		result.Skipped = "could not determine pod IPs"
		log.Info("Could not determine IPs of the pods")
		return result, nil
	}

	port, err := ResolvePodPort(target, pods.Items)
	if err != nil {
		return nil, err
	}
	result.Port = port
	if req.PathPrefix != "" {
		log.Info("Using REST path prefix", "prefix", req.PathPrefix)
	}
	log.Info("Using target port", "port", port)

	for _, ip := range ips {
		url := HookURL(ip, port, req.PathPrefix, req.Phase)
		result.Targets = append(result.Targets, url)
		if err := b.send(ctx, url, req); err != nil {
			result.Failed++
			log.Error(err, "Upgrade hook request failed; continuing with remaining pods", "pod_ip", ip)
		}
	}
	log.Info("Hook completed", "targets", len(result.Targets), "failed", result.Failed)
	return result, nil
}

func (b *Broadcaster) send(ctx context.Context, url string, req BroadcastRequest) error {
	var body io.Reader
	if req.Phase == PhasePre {
		body = strings.NewReader(strconv.FormatInt(req.PauseSeconds, 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "text/plain")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return operatorerrors.WrapTransientConnection(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code after %s-upgrade request at %s: %d", req.Phase, url, resp.StatusCode)
	}
	return nil
}

// ServiceTargetPort returns the target port of the named service port, or of
// the first port when portName is empty. The name match is case-insensitive.
func ServiceTargetPort(svc *corev1.Service, portName string) (intstr.IntOrString, error) {
	if len(svc.Spec.Ports) == 0 {
		return intstr.IntOrString{}, fmt.Errorf("service %s does not specify any ports", svc.Name)
	}

	port := svc.Spec.Ports[0]
	if portName != "" {
		found := false
		for _, p := range svc.Spec.Ports {
			if strings.EqualFold(p.Name, portName) {
				port, found = p, true
				break
			}
		}
		if !found {
			return intstr.IntOrString{}, operatorerrors.WrapPermanentPrerequisitesMissing(
				fmt.Errorf("could not find service port named %s", portName))
		}
	}

	target := port.TargetPort
	if target.Type == intstr.Int && target.IntVal == 0 {
		// An unset target port defaults to the service port.
		return intstr.FromInt32(port.Port), nil
	}
	return target, nil
}

// ResolvePodPort turns a symbolic target port into a number using the
// containers' named ports. The name match is case-insensitive.
func ResolvePodPort(target intstr.IntOrString, pods []corev1.Pod) (int32, error) {
	if target.Type == intstr.Int {
		return target.IntVal, nil
	}
	for _, pod := range pods {
		for _, c := range pod.Spec.Containers {
			for _, p := range c.Ports {
				if strings.EqualFold(p.Name, target.StrVal) {
					return p.ContainerPort, nil
				}
			}
		}
	}
	return 0, operatorerrors.WrapPermanentPrerequisitesMissing(
		fmt.Errorf("could not find port corresponding to name %s", target.StrVal))
}

// CountGenerations returns the number of distinct pod template generations,
// identified by the pods' generateName.
func CountGenerations(pods []corev1.Pod) int {
	seen := map[string]struct{}{}
	for _, pod := range pods {
		seen[pod.GenerateName] = struct{}{}
	}
	return len(seen)
}

// PodIPs returns the non-empty pod IPs in list order.
func PodIPs(pods []corev1.Pod) []string {
	ips := make([]string, 0, len(pods))
	for _, pod := range pods {
		if pod.Status.PodIP != "" {
			ips = append(ips, pod.Status.PodIP)
		}
	}
	return ips
}
