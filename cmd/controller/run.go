/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/constants"
	florkcontroller "github.com/flork/flork-operator/internal/controller"
	"github.com/flork/flork-operator/internal/logging"
	"github.com/flork/flork-operator/internal/registry"
	"github.com/flork/flork-operator/internal/storage"
	"github.com/flork/flork-operator/internal/upgrade"
	"github.com/flork/flork-operator/internal/webhook/validator"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(florkv1.AddToScheme(scheme))
}

// crdCheckTimeout bounds the startup lookup of the FlinkJob and FlinkSession CRDs.
const crdCheckTimeout = 30 * time.Second

type options struct {
	metricsAddr     string
	probeAddr       string
	webhookCertPath string
	webhookPort     int
	secureMetrics   bool
	enableHTTP2     bool
	logFormat       string
	zap             zap.Options
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("controller", flag.ContinueOnError)
	opts := &options{zap: zap.Options{Development: true}}

	fs.StringVar(&opts.metricsAddr, "metrics-bind-address", ":8443", "The address the metrics endpoint binds to.")
	fs.StringVar(&opts.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	fs.StringVar(&opts.webhookCertPath, "webhook-cert-path", "",
		"The directory that contains the webhook server certificate (tls.crt, tls.key).")
	fs.IntVar(&opts.webhookPort, "webhook-port", 9443,
		"The port of the HTTPS server for admission webhooks and upgrade hooks.")
	fs.BoolVar(&opts.secureMetrics, "metrics-secure", true,
		"If set, the metrics endpoint is served securely via HTTPS. Use --metrics-secure=false to use HTTP instead.")
	fs.BoolVar(&opts.enableHTTP2, "enable-http2", false,
		"If set, HTTP/2 will be enabled for the metrics and webhook servers")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log encoding, json or console. Empty keeps the zap flag defaults.")
	opts.zap.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := logging.ApplyFormat(&opts.zap, opts.logFormat); err != nil {
		return nil, err
	}
	return opts, nil
}

// tlsOptions disables http/2 unless it was asked for. Disabling it avoids the
// HTTP/2 Stream Cancellation and Rapid Reset CVEs:
// - https://github.com/advisories/GHSA-qppj-fm5r-hxr3
// - https://github.com/advisories/GHSA-4374-p667-p6c8
func tlsOptions(enableHTTP2 bool) []func(*tls.Config) {
	if enableHTTP2 {
		return nil
	}
	return []func(*tls.Config){func(c *tls.Config) {
		c.NextProtos = []string{"http/1.1"}
	}}
}

// readyCheck reports ready once every watch of the controller has synced.
func readyCheck(c interface{ Ready() bool }) healthz.Checker {
	return func(_ *http.Request) error {
		if !c.Ready() {
			return errors.New("controller watches have not synced")
		}
		return nil
	}
}

// handlerRegistry is the part of webhook.Server used for routing.
type handlerRegistry interface {
	Register(path string, hook http.Handler)
}

func registerAdmission(server handlerRegistry, log logr.Logger, decoder admission.Decoder) {
	server.Register(constants.PathAdmissionFlinkJob,
		&webhook.Admission{Handler: validator.NewFlinkJobValidator(log, decoder)})
	server.Register(constants.PathAdmissionFlinkSession,
		&webhook.Admission{Handler: validator.NewFlinkSessionValidator(log, decoder)})
}

func registerUpgradeHooks(server handlerRegistry, log logr.Logger, pauser upgrade.Pauser, defaultDuration time.Duration) {
	hooks := upgrade.NewHookHandlers(log, pauser, defaultDuration)
	server.Register(constants.PathPreUpgrade, hooks.PreUpgrade())
	server.Register(constants.PathPostUpgrade, hooks.PostUpgrade())
}

func checkCRDs(ctx context.Context, restConfig *rest.Config, httpClient *http.Client) error {
	extClient, err := apiextensionsclientset.NewForConfigAndClient(restConfig, httpClient)
	if err != nil {
		return fmt.Errorf("failed to create apiextensions client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, crdCheckTimeout)
	defer cancel()
	return florkcontroller.CheckCRDs(ctx, extClient, constants.CRDNameFlinkJobs, constants.CRDNameFlinkSessions)
}

// Run starts the flork controller manager.
// The manager serves metrics, probes and the webhook server and runs the
// controller variant selected by FLORK_MODE.
func Run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts.zap)))

	cfg, err := config.LoadControllerConfig(nil)
	if err != nil {
		return fmt.Errorf("invalid controller configuration: %w", err)
	}
	setupLog.Info("Loaded controller configuration",
		"mode", cfg.Mode,
		"tenant", cfg.TenantID,
		"namespaces", cfg.ManagedNamespaces,
		"resync", cfg.ResyncPeriod,
		"identity", cfg.Identity)

	tlsOpts := tlsOptions(opts.enableHTTP2)
	if !opts.enableHTTP2 {
		setupLog.Info("disabling http/2")
	}

	metricsServerOptions := metricsserver.Options{
		BindAddress:   opts.metricsAddr,
		SecureServing: opts.secureMetrics,
		TLSOpts:       tlsOpts,
	}
	if opts.secureMetrics {
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	webhookServer := webhook.NewServer(webhook.Options{
		Port:    opts.webhookPort,
		CertDir: opts.webhookCertPath,
		TLSOpts: tlsOpts,
	})

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("unable to load kubeconfig: %w", err)
	}

	// The controller only holds namespace-scoped permissions for the objects it
	// deploys, so the manager client reads them directly instead of from a
	// cluster-wide cache.
	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		HealthProbeBindAddress: opts.probeAddr,
		WebhookServer:          webhookServer,
		Client: client.Options{
			Cache: &client.CacheOptions{
				DisableFor: []client.Object{
					&corev1.ConfigMap{},
					&corev1.Service{},
					&corev1.Secret{},
					&appsv1.Deployment{},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to create manager: %w", err)
	}

	// The informers of the controller variants share one transport so that
	// shutdown can release its idle connections.
	httpClient, err := rest.HTTPClientFor(restConfig)
	if err != nil {
		return fmt.Errorf("unable to create HTTP client: %w", err)
	}
	kube, err := kubernetes.NewForConfigAndClient(restConfig, httpClient)
	if err != nil {
		return fmt.Errorf("unable to create Kubernetes clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfigAndClient(restConfig, httpClient)
	if err != nil {
		return fmt.Errorf("unable to create dynamic client: %w", err)
	}

	ctx := ctrl.SetupSignalHandler()

	if cfg.Mode == config.ModeCRD {
		if err := checkCRDs(ctx, restConfig, httpClient); err != nil {
			return err
		}
	}

	registerAdmission(webhookServer, ctrl.Log, admission.NewDecoder(scheme))

	reg := registry.New(ctrl.Log)
	c, err := florkcontroller.New(ctx, florkcontroller.Dependencies{
		Log:           ctrl.Log,
		Config:        cfg,
		Kube:          kube,
		Dynamic:       dyn,
		Client:        mgr.GetClient(),
		Registry:      reg,
		Storage:       &storage.S3HACleaner{},
		ReleaseClient: httpClient.CloseIdleConnections,
	})
	if err != nil {
		return fmt.Errorf("unable to create %s controller: %w", cfg.Mode, err)
	}
	if err := mgr.Add(c); err != nil {
		c.Shutdown()
		return fmt.Errorf("unable to add controller to manager: %w", err)
	}

	if cm, ok := c.(*florkcontroller.ConfigMapController); ok {
		registerUpgradeHooks(webhookServer, ctrl.Log, cm.Coordinator(), cfg.PauseDuration)
		if err := mgr.Add(cm.Janitor()); err != nil {
			c.Shutdown()
			return fmt.Errorf("unable to add status janitor to manager: %w", err)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		c.Shutdown()
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", readyCheck(c)); err != nil {
		c.Shutdown()
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	setupLog.Info("starting controller manager")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("problem running manager: %w", err)
	}
	return nil
}
