package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	corev1listers "k8s.io/client-go/listers/core/v1"
	"k8s.io/client-go/tools/cache"

	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/lifecycle"
	"github.com/flork/flork-operator/internal/logging"
	"github.com/flork/flork-operator/internal/reconciler"
	"github.com/flork/flork-operator/internal/upgrade"
)

// ConfigMapController watches job ConfigMaps in the pod namespace. Each job
// ConfigMap carries a FlinkJob under the customResource key; its state is kept
// in a companion status ConfigMap. Reconciliation can be paused for a
// controller upgrade through the Coordinator.
type ConfigMapController struct {
	*lifecycle.Manager

	log       logr.Logger
	ctx       context.Context
	kube      kubernetes.Interface
	namespace string

	coordinator *upgrade.Coordinator
	elector     reconciler.Elector
	janitor     *StatusJanitor

	mu      sync.Mutex
	factory *reconciler.Factory
	rec     *reconciler.Reconciler

	statuses corev1listers.ConfigMapLister
}

// NewConfigMapController starts the outer (job) and inner (status) ConfigMap
// watches of the pod namespace.
func NewConfigMapController(ctx context.Context, deps Dependencies) (*ConfigMapController, error) {
	cfg := deps.Config
	namespace := cfg.PodNamespace
	if namespace == "" {
		namespace = constants.DefaultNamespace
	}
	log := deps.Log.WithName("configmap-controller").WithValues("tenant", cfg.TenantID, "namespace", namespace)

	c := &ConfigMapController{
		log:       log,
		ctx:       ctx,
		kube:      deps.Kube,
		namespace: namespace,
	}
	c.coordinator = upgrade.NewCoordinator(log, upgrade.CoordinatorOptions{
		OnIndefinitePause: c.releaseReconcilers,
	})
	c.Manager = lifecycle.NewManager(log, lifecycle.Options{
		Name:          string(config.ModeConfigMap),
		Registry:      deps.Registry,
		OnShutdown:    c.coordinator.Shutdown,
		ReleaseClient: deps.ReleaseClient,
	})
	built := false
	defer func() {
		if !built {
			c.Shutdown()
		}
	}()

	janitor, err := NewStatusJanitor(log, deps.Kube, namespace, cfg.StatusJanitorSchedule, c.coordinator.Paused)
	if err != nil {
		return nil, err
	}
	c.janitor = janitor

	c.elector = reconciler.NewLeaseElector(log, deps.Kube, reconciler.LeaseElectorOptions{
		Identity:         cfg.Identity,
		OnStartedLeading: c.requeue,
	})

	outer := informers.NewSharedInformerFactoryWithOptions(deps.Kube, cfg.ResyncPeriod,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(o *metav1.ListOptions) {
			o.LabelSelector = constants.SelectorOuterJobConfigMaps
		}),
	).Core().V1().ConfigMaps()
	inner := informers.NewSharedInformerFactoryWithOptions(deps.Kube, cfg.ResyncPeriod,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(o *metav1.ListOptions) {
			o.LabelSelector = constants.SelectorStatusConfigMaps
		}),
	).Core().V1().ConfigMaps()
	c.statuses = inner.Lister()

	opts := reconcilerOptions(deps, constants.KindFlinkJob, &ConfigMapStatusWriter{Kube: deps.Kube}, c.elector)
	opts.Paused = c.coordinator.Paused
	factory := reconciler.NewFactory(log, opts)
	deps.Registry.Register(factory)

	ref := reconciler.NewListerRef(configMapConverter(c.statuses))
	ref.Set(cache.NewGenericLister(outer.Informer().GetIndexer(), corev1.Resource("configmaps")))
	rec := factory.NewReconciler(ctx, ref)

	c.mu.Lock()
	c.factory = factory
	c.rec = rec
	c.mu.Unlock()

	jobSelector, err := labels.Parse(constants.SelectorOuterJobConfigMaps)
	if err != nil {
		return nil, operatorerrors.ContractViolation("invalid job selector: %v", err)
	}
	statusSelector, err := labels.Parse(constants.SelectorStatusConfigMaps)
	if err != nil {
		return nil, operatorerrors.ContractViolation("invalid status selector: %v", err)
	}

	if _, err := outer.Informer().AddEventHandler(cache.FilteringResourceEventHandler{
		FilterFunc: matchesSelector(jobSelector),
		Handler: cache.ResourceEventHandlerFuncs{
			AddFunc:    c.onJobConfigMap,
			UpdateFunc: func(_, newObj any) { c.onJobConfigMap(newObj) },
			DeleteFunc: c.onJobConfigMapDeleted,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to add job ConfigMap event handler: %w", err)
	}
	if _, err := inner.Informer().AddEventHandler(cache.FilteringResourceEventHandler{
		FilterFunc: matchesSelector(statusSelector),
		Handler: cache.ResourceEventHandlerFuncs{
			AddFunc:    c.onStatusConfigMap,
			UpdateFunc: func(_, newObj any) { c.onStatusConfigMap(newObj) },
			DeleteFunc: c.onStatusConfigMap,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to add status ConfigMap event handler: %w", err)
	}

	c.RegisterWatch(namespace+"-flink-job-outer", lifecycle.StartInformer(outer.Informer()))
	c.RegisterWatch(namespace+"-flink-job-inner", lifecycle.StartInformer(inner.Informer()))

	log.Info("ConfigMap controller constructed")
	built = true
	return c, nil
}

// Coordinator returns the pause state backing the upgrade hook endpoints.
func (c *ConfigMapController) Coordinator() *upgrade.Coordinator { return c.coordinator }

// Janitor returns the sweeper of orphaned status ConfigMaps.
func (c *ConfigMapController) Janitor() *StatusJanitor { return c.janitor }

func (c *ConfigMapController) activeReconciler() *reconciler.Reconciler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// releaseReconcilers stops the reconciler workers once a pause became indefinite.
func (c *ConfigMapController) releaseReconcilers() {
	c.mu.Lock()
	factory := c.factory
	c.mu.Unlock()
	if factory == nil {
		return
	}
	if err := factory.StopAll(); err != nil {
		c.log.Error(err, "Failed to release reconcilers")
		return
	}
	c.log.Info("Released reconcilers for an indefinite pause")
}

func (c *ConfigMapController) requeue(namespace, name string) {
	c.mu.Lock()
	factory := c.factory
	c.mu.Unlock()
	if factory != nil {
		factory.Requeue(namespace, name)
	}
}

func (c *ConfigMapController) onJobConfigMap(obj any) {
	if c.coordinator.Paused() {
		return
	}
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		return
	}
	log := c.log.WithValues("configmap", cm.Name)

	if err := c.ensureStatusConfigMap(cm); err != nil {
		log.Error(err, "Failed to create status ConfigMap")
	}
	if _, err := ParseFlinkJob(cm); err != nil {
		configMapExceptionsTotal.Inc()
		log.Info("Job ConfigMap does not carry a valid FlinkJob", "error", err.Error())
		if err := recordException(c.ctx, c.kube, cm.Namespace, cm.Name, err); err != nil {
			log.Error(err, "Failed to record exception")
		}
		return
	}
	c.activeReconciler().Enqueue(cm)
}

func (c *ConfigMapController) onJobConfigMapDeleted(obj any) {
	if c.coordinator.Paused() {
		return
	}
	key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
	if err != nil {
		c.log.Error(err, "Failed to get key of deleted job ConfigMap")
		return
	}
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		return
	}

	c.activeReconciler().Delete(obj)

	statusName := StatusConfigMapName(name)
	err = c.kube.CoreV1().ConfigMaps(namespace).Delete(c.ctx, statusName, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		c.log.Error(err, "Failed to delete status ConfigMap; the janitor will retry", "configmap", statusName)
		return
	}
	if err == nil {
		logging.LogAuditEvent(c.log, logging.EventStatusConfigMapDeleted, map[string]string{
			"namespace": namespace,
			"configmap": statusName,
			"job":       name,
		})
	}
}

// onStatusConfigMap requeues the job of a changed status ConfigMap. Settled
// jobs are skipped by the reconciler, so status writes do not loop.
func (c *ConfigMapController) onStatusConfigMap(obj any) {
	if c.coordinator.Paused() {
		return
	}
	key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
	if err != nil {
		return
	}
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		return
	}
	job, ok := JobNameForStatus(name)
	if !ok {
		return
	}
	c.activeReconciler().EnqueueKey(namespace, job)
}

// matchesSelector filters informer events by label. A job ConfigMap that loses
// its label is handled as a delete.
func matchesSelector(selector labels.Selector) func(obj any) bool {
	return func(obj any) bool {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			obj = tomb.Obj
		}
		accessor, err := meta.Accessor(obj)
		if err != nil {
			return false
		}
		return selector.Matches(labels.Set(accessor.GetLabels()))
	}
}

// ensureStatusConfigMap creates the status ConfigMap of cm unless the inner
// watch already knows it.
func (c *ConfigMapController) ensureStatusConfigMap(cm *corev1.ConfigMap) error {
	name := StatusConfigMapName(cm.Name)
	if _, err := c.statuses.ConfigMaps(cm.Namespace).Get(name); err == nil {
		return nil
	}
	_, err := c.kube.CoreV1().ConfigMaps(cm.Namespace).Create(c.ctx, newStatusConfigMap(cm.Namespace, cm.Name), metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}
