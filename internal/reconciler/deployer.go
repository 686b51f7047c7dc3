package reconciler

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
	"github.com/flork/flork-operator/internal/flinkconf"
)

// Deployer materializes and removes Flink clusters.
type Deployer interface {
	Deploy(ctx context.Context, target *Target, rendered *flinkconf.Rendered) error
	Delete(ctx context.Context, namespace, name string) error
}

// KubeDeployer runs Flink clusters as plain Deployments: a JobManager
// Deployment named after the resource owns the TaskManager Deployment, the
// JobManager Service and the configuration ConfigMap.
type KubeDeployer struct {
	Client client.Client
	Log    logr.Logger
}

// ConfConfigMapName returns the name of the rendered configuration ConfigMap.
func ConfConfigMapName(name string) string { return name + constants.SuffixConfConfigMap }

// TaskManagerName returns the name of the TaskManager Deployment.
func TaskManagerName(name string) string { return name + constants.SuffixTaskManager }

func (d *KubeDeployer) Deploy(ctx context.Context, target *Target, rendered *flinkconf.Rendered) error {
	log := d.Log.WithValues("kind", target.Kind, "resource", target.Key())

	jm := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: target.Name, Namespace: target.Namespace}}
	op, err := controllerutil.CreateOrUpdate(ctx, d.Client, jm, func() error {
		labels := clusterLabels(target.Name, constants.LabelValueComponentJobManager)
		mutateDeployment(jm, labels, rendered.JobManagerPodTemplate, rendered, 1, jobManagerArgs(target))
		jm.Spec.Strategy = appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType}
		return nil
	})
	if err != nil {
		return classifyAPI(fmt.Errorf("failed to apply JobManager Deployment %s: %w", target.Key(), err))
	}
	log.V(1).Info("Applied JobManager Deployment", "operation", op)

	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: ConfConfigMapName(target.Name), Namespace: target.Namespace}}
	if _, err := controllerutil.CreateOrUpdate(ctx, d.Client, cm, func() error {
		cm.Labels = clusterLabels(target.Name, "")
		cm.Data = rendered.Files
		return controllerutil.SetControllerReference(jm, cm, d.Client.Scheme())
	}); err != nil {
		return classifyAPI(fmt.Errorf("failed to apply configuration ConfigMap %s: %w", cm.Name, err))
	}

	svc := &corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: target.Name, Namespace: target.Namespace}}
	if _, err := controllerutil.CreateOrUpdate(ctx, d.Client, svc, func() error {
		mutateService(svc, target, rendered)
		return controllerutil.SetControllerReference(jm, svc, d.Client.Scheme())
	}); err != nil {
		return classifyAPI(fmt.Errorf("failed to apply JobManager Service %s: %w", target.Key(), err))
	}

	tm := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: TaskManagerName(target.Name), Namespace: target.Namespace}}
	op, err = controllerutil.CreateOrUpdate(ctx, d.Client, tm, func() error {
		labels := clusterLabels(target.Name, constants.LabelValueComponentTaskManager)
		mutateDeployment(tm, labels, rendered.TaskManagerPodTemplate, rendered, TaskManagerReplicas(rendered.Conf), []string{"taskmanager"})
		return controllerutil.SetControllerReference(jm, tm, d.Client.Scheme())
	})
	if err != nil {
		return classifyAPI(fmt.Errorf("failed to apply TaskManager Deployment %s: %w", tm.Name, err))
	}
	log.V(1).Info("Applied TaskManager Deployment", "operation", op)
	return nil
}

// Delete removes the JobManager Deployment with foreground propagation so that
// every owned object goes with it. Missing objects are not an error.
func (d *KubeDeployer) Delete(ctx context.Context, namespace, name string) error {
	jm := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	err := d.Client.Delete(ctx, jm, client.PropagationPolicy(metav1.DeletePropagationForeground))
	if err != nil && !apierrors.IsNotFound(err) {
		return classifyAPI(fmt.Errorf("failed to delete Deployment %s/%s: %w", namespace, name, err))
	}

	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: ConfConfigMapName(name), Namespace: namespace}}
	if err := d.Client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return classifyAPI(fmt.Errorf("failed to delete ConfigMap %s/%s: %w", namespace, cm.Name, err))
	}
	d.Log.Info("Deleted Flink cluster", "namespace", namespace, "name", name)
	return nil
}

func clusterLabels(name, component string) map[string]string {
	labels := map[string]string{
		constants.LabelAppName:      constants.LabelValueAppNameFlink,
		constants.LabelAppInstance:  name,
		constants.LabelAppManagedBy: constants.LabelValueAppManagedByFlork,
	}
	if component != "" {
		labels[constants.LabelAppComponent] = component
	}
	return labels
}

func jobManagerArgs(target *Target) []string {
	if target.Session() {
		return []string{"jobmanager"}
	}
	args := []string{"standalone-job"}
	if target.JobClassName != "" {
		args = append(args, "--job-classname", target.JobClassName)
	}
	return append(args, target.JobArgs...)
}

func mutateDeployment(dep *appsv1.Deployment, labels map[string]string, pod *corev1.Pod, rendered *flinkconf.Rendered, replicas int32, args []string) {
	dep.Labels = labels
	dep.Spec.Replicas = ptr.To(replicas)
	if dep.Spec.Selector == nil {
		dep.Spec.Selector = &metav1.LabelSelector{MatchLabels: labels}
	}

	podLabels := make(map[string]string, len(pod.Labels)+len(labels))
	for k, v := range pod.Labels {
		podLabels[k] = v
	}
	for k, v := range labels {
		podLabels[k] = v
	}

	spec := pod.Spec.DeepCopy()
	mountConf(spec, rendered, args)
	dep.Spec.Template = corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{Labels: podLabels, Annotations: pod.Annotations},
		Spec:       *spec,
	}
}

// mountConf mounts the configuration ConfigMap into the main Flink container.
func mountConf(spec *corev1.PodSpec, rendered *flinkconf.Rendered, args []string) {
	name := rendered.Conf[constants.FlinkKeyClusterID]

	volumes := spec.Volumes[:0]
	for _, v := range spec.Volumes {
		if v.Name != constants.VolumeNameFlorkConf {
			volumes = append(volumes, v)
		}
	}
	spec.Volumes = append(volumes, corev1.Volume{
		Name: constants.VolumeNameFlorkConf,
		VolumeSource: corev1.VolumeSource{ConfigMap: &corev1.ConfigMapVolumeSource{
			LocalObjectReference: corev1.LocalObjectReference{Name: ConfConfigMapName(name)},
		}},
	})

	idx := -1
	for i := range spec.Containers {
		if spec.Containers[i].Name == constants.ContainerNameFlinkMain {
			idx = i
			break
		}
	}
	if idx < 0 {
		spec.Containers = append(spec.Containers, corev1.Container{Name: constants.ContainerNameFlinkMain})
		idx = len(spec.Containers) - 1
	}
	c := &spec.Containers[idx]
	if len(c.Args) == 0 {
		c.Args = args
	}

	mounts := c.VolumeMounts[:0]
	for _, m := range c.VolumeMounts {
		if m.Name != constants.VolumeNameFlorkConf {
			mounts = append(mounts, m)
		}
	}
	c.VolumeMounts = append(mounts, corev1.VolumeMount{Name: constants.VolumeNameFlorkConf, MountPath: rendered.ConfDir})

	env := c.Env[:0]
	for _, e := range c.Env {
		if e.Name != constants.EnvFlinkConfDir {
			env = append(env, e)
		}
	}
	c.Env = append(env, corev1.EnvVar{Name: constants.EnvFlinkConfDir, Value: rendered.ConfDir})
}

func mutateService(svc *corev1.Service, target *Target, rendered *flinkconf.Rendered) {
	labels := clusterLabels(target.Name, constants.LabelValueComponentJobManager)
	svc.Labels = labels
	svc.Spec.Selector = labels

	svc.Spec.Type = corev1.ServiceTypeClusterIP
	if !target.Source.FlorkConf.PrefersClusterInternalService() {
		if t := corev1.ServiceType(rendered.Conf[constants.FlinkKeyServiceExposedType]); t != "" {
			svc.Spec.Type = t
		}
	}

	svc.Spec.Ports = []corev1.ServicePort{
		servicePort("rpc", confInt32(rendered.Conf, constants.FlinkKeyRPCPort, constants.FlinkDefaultRPCPort)),
		servicePort("blob", confInt32(rendered.Conf, constants.FlinkKeyBlobPort, constants.FlinkDefaultBlobPort)),
		servicePort("rest", confInt32(rendered.Conf, constants.FlinkKeyRestPort, constants.FlinkDefaultRESTPort)),
	}
}

func servicePort(name string, port int32) corev1.ServicePort {
	return corev1.ServicePort{
		Name:       name,
		Port:       port,
		TargetPort: intstr.FromInt32(port),
		Protocol:   corev1.ProtocolTCP,
	}
}

func confInt32(conf map[string]string, key string, fallback int32) int32 {
	if v, err := strconv.ParseInt(conf[key], 10, 32); err == nil && v > 0 {
		return int32(v)
	}
	return fallback
}

// TaskManagerReplicas returns enough TaskManagers to provide the default
// parallelism with the configured slots per TaskManager.
func TaskManagerReplicas(conf map[string]string) int32 {
	parallelism := int64(confInt32(conf, constants.FlinkKeyParallelism, 1))
	slots := int64(confInt32(conf, constants.FlinkKeyTaskSlots, 1))
	replicas := (parallelism + slots - 1) / slots
	if replicas > math.MaxInt32 {
		replicas = math.MaxInt32
	}
	return int32(replicas)
}

func classifyAPI(err error) error {
	if operatorerrors.IsTransientKubernetesAPI(err) {
		return operatorerrors.WrapTransientKubernetesAPI(err)
	}
	return err
}
