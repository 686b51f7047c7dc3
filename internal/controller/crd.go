package controller

import (
	"context"
	"fmt"
	"sync"

	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/tools/cache"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/lifecycle"
	"github.com/flork/flork-operator/internal/reconciler"
)

// crdKinds are the resources watched by the CRD variant.
var crdKinds = []struct {
	kind string
	gvr  schema.GroupVersionResource
}{
	{kind: constants.KindFlinkJob, gvr: florkv1.FlinkJobGVR},
	{kind: constants.KindFlinkSession, gvr: florkv1.FlinkSessionGVR},
}

// CRDController watches FlinkJob and FlinkSession resources, one informer per
// managed namespace and kind.
type CRDController struct {
	*lifecycle.Manager

	mu        sync.Mutex
	factories []*reconciler.Factory
}

// NewCRDController validates the namespace list and starts the informers of
// every managed namespace. If construction fails half-way, everything started
// so far is shut down before the error is returned.
func NewCRDController(ctx context.Context, deps Dependencies) (*CRDController, error) {
	cfg := deps.Config
	if err := config.ValidateNamespaces(cfg.ManagedNamespaces); err != nil {
		return nil, operatorerrors.WrapPermanentConfig(err)
	}
	if deps.Dynamic == nil {
		return nil, operatorerrors.ContractViolation("dynamic client is required in %s mode", config.ModeCRD)
	}

	log := deps.Log.WithName("crd-controller").WithValues("tenant", cfg.TenantID)
	c := &CRDController{
		Manager: lifecycle.NewManager(log, lifecycle.Options{
			Name:          string(config.ModeCRD),
			Registry:      deps.Registry,
			ReleaseClient: deps.ReleaseClient,
		}),
	}
	built := false
	defer func() {
		if !built {
			c.Shutdown()
		}
	}()

	elector := reconciler.NewLeaseElector(log, deps.Kube, reconciler.LeaseElectorOptions{
		Identity:         cfg.Identity,
		OnStartedLeading: c.requeue,
	})
	status := &reconciler.CRStatusWriter{Client: deps.Dynamic}

	namespaces := cfg.ManagedNamespaces
	if cfg.AllNamespaces() {
		namespaces = []string{metav1.NamespaceAll}
	}

	for _, k := range crdKinds {
		factory := reconciler.NewFactory(log, reconcilerOptions(deps, k.kind, status, elector))
		deps.Registry.Register(factory)
		c.mu.Lock()
		c.factories = append(c.factories, factory)
		c.mu.Unlock()

		for _, ns := range namespaces {
			informer := dynamicinformer.NewFilteredDynamicInformer(
				deps.Dynamic, k.gvr, ns, cfg.ResyncPeriod,
				cache.Indexers{cache.NamespaceIndex: cache.MetaNamespaceIndexFunc}, nil,
			)
			ref := reconciler.NewListerRef(reconciler.UnstructuredConverter(k.kind))
			ref.Set(informer.Lister())
			rec := factory.NewReconciler(ctx, ref)

			if _, err := informer.Informer().AddEventHandler(reconcilerHandlers(rec)); err != nil {
				return nil, fmt.Errorf("failed to add %s event handler in %q: %w", k.gvr.Resource, ns, err)
			}
			c.RegisterWatch(crdWatchName(ns, k.gvr.Resource), lifecycle.StartInformer(informer.Informer()))
		}
	}

	log.Info("CRD controller constructed", "namespaces", namespaces)
	built = true
	return c, nil
}

// requeue schedules a resource on every factory after its lease was acquired.
func (c *CRDController) requeue(namespace, name string) {
	c.mu.Lock()
	factories := append([]*reconciler.Factory(nil), c.factories...)
	c.mu.Unlock()
	for _, f := range factories {
		f.Requeue(namespace, name)
	}
}

func crdWatchName(namespace, resource string) string {
	if namespace == metav1.NamespaceAll {
		namespace = constants.AllNamespaces
	}
	return namespace + "/" + resource
}

// reconcilerHandlers forwards informer events to rec.
func reconcilerHandlers(rec *reconciler.Reconciler) cache.ResourceEventHandlerFuncs {
	return cache.ResourceEventHandlerFuncs{
		AddFunc:    rec.Enqueue,
		UpdateFunc: func(_, newObj any) { rec.Enqueue(newObj) },
		DeleteFunc: rec.Delete,
	}
}

// CheckCRDs fails with a permanent config error when one of the named
// CustomResourceDefinitions is not installed.
func CheckCRDs(ctx context.Context, client apiextensionsclientset.Interface, names ...string) error {
	for _, name := range names {
		_, err := client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return operatorerrors.WrapPermanentConfig(fmt.Errorf("CRD %s is not installed", name))
		}
		if err != nil {
			return operatorerrors.WrapCRDMissing(fmt.Errorf("failed to look up CRD %s: %w", name, err))
		}
	}
	return nil
}
