// Package controller assembles the two controller variants. The CRD variant
// watches FlinkJob and FlinkSession resources in the managed namespaces; the
// ConfigMap variant watches labelled ConfigMaps in its own namespace for
// clusters where custom resources cannot be installed.
package controller

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/reconciler"
	"github.com/flork/flork-operator/internal/registry"
	"github.com/flork/flork-operator/internal/storage"
)

// Controller is a running controller variant.
type Controller interface {
	// Start waits for every watch to sync and runs until ctx is cancelled.
	Start(ctx context.Context) error
	// NeedLeaderElection reports whether the variant runs only on the elected replica.
	NeedLeaderElection() bool
	// Ready reports whether every watch completed its initial sync.
	Ready() bool
	// AwaitReady blocks until Ready or until ctx ends.
	AwaitReady(ctx context.Context) error
	// Shutdown stops watches, reconcilers and client connections. It is idempotent.
	Shutdown()
}

// Dependencies are the clients and shared services a variant is built from.
type Dependencies struct {
	Log    logr.Logger
	Config *config.ControllerConfig

	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
	// Client is used by the deployer to create and update cluster objects.
	Client client.Client

	Registry *registry.Registry
	// Storage removes HA state from object storage. Optional.
	Storage storage.HAStorageCleaner
	// ReleaseClient releases the API client connections on shutdown. Optional.
	ReleaseClient func()
}

func (d *Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return operatorerrors.ContractViolation("controller config is required")
	case d.Kube == nil:
		return operatorerrors.ContractViolation("kubernetes client is required")
	case d.Client == nil:
		return operatorerrors.ContractViolation("deployer client is required")
	case d.Registry == nil:
		return operatorerrors.ContractViolation("factory registry is required")
	}
	return nil
}

// New builds the variant selected by deps.Config.Mode.
func New(ctx context.Context, deps Dependencies) (Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	switch deps.Config.Mode {
	case config.ModeCRD:
		return NewCRDController(ctx, deps)
	case config.ModeConfigMap:
		return NewConfigMapController(ctx, deps)
	default:
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("unknown controller mode %q", deps.Config.Mode))
	}
}

// reconcilerOptions returns the options shared by the factories of a variant.
func reconcilerOptions(deps Dependencies, kind string, status reconciler.StatusWriter, elector reconciler.Elector) reconciler.Options {
	log := deps.Log.WithName("reconciler").WithValues("kind", kind)
	return reconciler.Options{
		Kind:     kind,
		Workers:  deps.Config.ReconcilerWorkers,
		Deployer: &reconciler.KubeDeployer{Client: deps.Client, Log: log.WithName("deployer")},
		Status:   status,
		Elector:  elector,
		HA: &reconciler.HACleaner{
			Log:      log.WithName("ha"),
			Kube:     deps.Kube,
			Storage:  deps.Storage,
			Interval: constants.HACleanupInterval,
			Timeout:  reconciler.DefaultHACleanupTimeout,
		},
	}
}
