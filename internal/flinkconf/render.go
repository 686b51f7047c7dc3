// Package flinkconf renders the configuration directory of a Flink cluster
// (flink-conf.yaml, pod templates and additional files) from a Flink resource.
package flinkconf

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
)

// Deployment targets forced on every cluster.
const (
	ExecutionTargetApplication = "kubernetes-application"
	ExecutionTargetSession     = "kubernetes-session"
)

// AnnotationGeneration records the resource generation on rendered pod templates.
const AnnotationGeneration = "flork.itom.com/generation"

// defaults are applied only when the key is absent.
var defaults = map[string]string{
	"jobmanager.memory.process.size":      "1g",
	"taskmanager.memory.process.size":     "1g",
	"taskmanager.memory.managed.fraction": "0.2",
	constants.FlinkKeyParallelism:         "1",
	constants.FlinkKeyTaskSlots:           "1",
	constants.FlinkKeyBlobPort:            "6124",
	constants.FlinkKeyServiceExposedType:  "ClusterIP",
}

// Source is the part of a Flink resource the renderer needs.
type Source struct {
	Name       string
	Namespace  string
	Generation int64
	Session    bool

	FlorkConf           florkv1.FlorkConf
	FlinkConf           florkv1.FlinkConf
	JobManagerPodMeta   *florkv1.PodMeta
	JobManagerPodSpec   corev1.PodSpec
	TaskManagerPodSpec  *corev1.PodSpec
	AdditionalConfFiles map[string]string
}

// Key returns the namespace/name key of the source resource.
func (s *Source) Key() string { return s.Namespace + "/" + s.Name }

// FromFlinkJob builds a Source from a FlinkJob.
func FromFlinkJob(job *florkv1.FlinkJob) *Source {
	return &Source{
		Name:                job.Name,
		Namespace:           job.Namespace,
		Generation:          job.Generation,
		FlorkConf:           job.Spec.FlorkConf,
		FlinkConf:           job.Spec.FlinkConf,
		JobManagerPodMeta:   job.Spec.JobManagerPodMeta,
		JobManagerPodSpec:   job.Spec.JobManagerPodSpec,
		TaskManagerPodSpec:  job.Spec.TaskManagerPodSpec,
		AdditionalConfFiles: job.Spec.AdditionalConfFiles,
	}
}

// FromFlinkSession builds a Source from a FlinkSession.
func FromFlinkSession(session *florkv1.FlinkSession) *Source {
	return &Source{
		Name:               session.Name,
		Namespace:          session.Namespace,
		Generation:         session.Generation,
		Session:            true,
		FlorkConf:          session.Spec.FlorkConf,
		FlinkConf:          session.Spec.FlinkConf,
		JobManagerPodSpec:  session.Spec.JobManagerPodSpec,
		TaskManagerPodSpec: session.Spec.TaskManagerPodSpec,
	}
}

// Rendered is the content of a configuration directory.
type Rendered struct {
	// Conf is the effective engine configuration.
	Conf map[string]string
	// Files maps file names to their content.
	Files map[string]string
	// ConfDir is where Files must be mounted in the Flink pods.
	ConfDir string
	// DesiredConfDir is the directory the user asked for.
	DesiredConfDir string

	JobManagerPodTemplate  *corev1.Pod
	TaskManagerPodTemplate *corev1.Pod
}

// Render produces the configuration directory for src. Inputs are not modified.
func Render(log logr.Logger, src *Source) (*Rendered, error) {
	log = log.WithValues("resource", src.Key())

	conf := make(map[string]string, len(src.FlinkConf)+len(defaults)+6)
	for k, v := range src.FlinkConf {
		conf[k] = v
	}

	desired := conf[constants.FlinkKeyConfDir]
	if desired == "" {
		desired = constants.FlinkDefaultConfDir
	}
	confDir := desired
	if src.FlorkConf.ShadowConfigFiles {
		confDir = constants.FlorkConfDir
		conf[constants.FlinkKeyConfDir] = constants.FlorkConfDir
	}

	for k, v := range defaults {
		if _, ok := conf[k]; !ok {
			conf[k] = v
		}
	}

	target := ExecutionTargetApplication
	if src.Session {
		target = ExecutionTargetSession
	}
	forced := []struct{ key, value string }{
		{constants.FlinkKeyExecutionTarget, target},
		{constants.FlinkKeyNamespace, src.Namespace},
		{constants.FlinkKeyClusterID, src.Name},
		{constants.FlinkKeyRPCAddress, src.Name},
		{constants.FlinkKeyJobManagerTemplate, path.Join(confDir, constants.FileJobManagerPodTemplate)},
		{constants.FlinkKeyTaskManagerTemplate, path.Join(confDir, constants.FileTaskManagerPodTemplate)},
		{constants.FlinkKeyDeploymentConfigDir, confDir},
	}
	for _, f := range forced {
		if _, ok := conf[f.key]; ok {
			log.Info("Flink configuration contained a key which will be overwritten", "key", f.key)
		}
		conf[f.key] = f.value
	}

	jmSpec := src.JobManagerPodSpec.DeepCopy()
	var tmSpec *corev1.PodSpec
	if src.TaskManagerPodSpec != nil {
		tmSpec = src.TaskManagerPodSpec.DeepCopy()
	} else {
		tmSpec = src.JobManagerPodSpec.DeepCopy()
		// JobManager args select the JobManager entrypoint.
		for i := range tmSpec.Containers {
			if tmSpec.Containers[i].Name == constants.ContainerNameFlinkMain {
				tmSpec.Containers[i].Args = nil
			}
		}
	}
	if src.FlorkConf.ShadowConfigFiles {
		InjectDesiredConfPath(jmSpec, desired)
		InjectDesiredConfPath(tmSpec, desired)
	}

	jmPod := podTemplate(src, jmSpec)
	if meta := src.JobManagerPodMeta; meta != nil {
		for k, v := range meta.Labels {
			if jmPod.Labels == nil {
				jmPod.Labels = map[string]string{}
			}
			jmPod.Labels[k] = v
		}
		for k, v := range meta.Annotations {
			jmPod.Annotations[k] = v
		}
	}
	tmPod := podTemplate(src, tmSpec)

	files := map[string]string{constants.FileFlinkConf: FormatConf(conf)}
	for name, pod := range map[string]*corev1.Pod{
		constants.FileJobManagerPodTemplate:  jmPod,
		constants.FileTaskManagerPodTemplate: tmPod,
	} {
		out, err := yaml.Marshal(pod)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s for %s: %w", name, src.Key(), err)
		}
		files[name] = string(out)
	}

	for name, content := range src.AdditionalConfFiles {
		if name == constants.FileFlinkConf || name == constants.FilePodTemplate {
			log.Info("Ignoring reserved file in additionalConfFiles", "file", name)
			continue
		}
		files[name] = content
	}

	return &Rendered{
		Conf:                   conf,
		Files:                  files,
		ConfDir:                confDir,
		DesiredConfDir:         desired,
		JobManagerPodTemplate:  jmPod,
		TaskManagerPodTemplate: tmPod,
	}, nil
}

func podTemplate(src *Source, spec *corev1.PodSpec) *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      src.Name,
			Namespace: src.Namespace,
			Annotations: map[string]string{
				AnnotationGeneration: strconv.FormatInt(src.Generation, 10),
			},
		},
		Spec: *spec,
	}
}

// InjectDesiredConfPath sets the desired configuration directory as an env var
// on the main Flink container, adding the container when it is missing.
func InjectDesiredConfPath(spec *corev1.PodSpec, dir string) {
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
	env := c.Env[:0]
	for _, e := range c.Env {
		if e.Name != constants.EnvDesiredConfPath {
			env = append(env, e)
		}
	}
	c.Env = append(env, corev1.EnvVar{Name: constants.EnvDesiredConfPath, Value: dir})
}

// FormatConf writes conf in the flat "key: value" form Flink reads, sorted by key.
// Values are written verbatim because Flink does not unquote them.
func FormatConf(conf map[string]string) string {
	keys := make([]string, 0, len(conf))
	for k := range conf {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(conf[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// HighAvailabilityEnabled reports whether conf enables Flink HA.
func HighAvailabilityEnabled(conf florkv1.FlinkConf) bool {
	v := strings.TrimSpace(conf[constants.FlinkKeyHighAvailability])
	return v != "" && !strings.EqualFold(v, "none")
}
