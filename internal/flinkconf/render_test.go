package flinkconf

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/constants"
)

func newJob() *florkv1.FlinkJob {
	return &florkv1.FlinkJob{
		ObjectMeta: metav1.ObjectMeta{Name: "wordcount", Namespace: "team-a", Generation: 3},
		Spec: florkv1.FlinkJobSpec{
			FlinkConf: florkv1.FlinkConf{
				"parallelism.default": "4",
				"execution.target":    "local",
			},
			JobManagerPodSpec: corev1.PodSpec{
				Containers: []corev1.Container{{Name: "flink-main-container", Image: "flink:1.20"}},
			},
		},
	}
}

func TestRenderAppliesDefaultsAndForcedKeys(t *testing.T) {
	t.Parallel()

	r, err := Render(logr.Discard(), FromFlinkJob(newJob()))
	require.NoError(t, err)

	assert.Equal(t, "4", r.Conf["parallelism.default"], "user values win over defaults")
	assert.Equal(t, "1g", r.Conf["jobmanager.memory.process.size"])
	assert.Equal(t, ExecutionTargetApplication, r.Conf[constants.FlinkKeyExecutionTarget])
	assert.Equal(t, "team-a", r.Conf[constants.FlinkKeyNamespace])
	assert.Equal(t, "wordcount", r.Conf[constants.FlinkKeyClusterID])
	assert.Equal(t, "/opt/flink/conf/job_manager_pod_template.yaml", r.Conf[constants.FlinkKeyJobManagerTemplate])
	assert.Equal(t, constants.FlinkDefaultConfDir, r.ConfDir)
	assert.Equal(t, constants.FlinkDefaultConfDir, r.Conf[constants.FlinkKeyDeploymentConfigDir])

	assert.Contains(t, r.Files, constants.FileFlinkConf)
	assert.Contains(t, r.Files, constants.FileJobManagerPodTemplate)
	assert.Contains(t, r.Files, constants.FileTaskManagerPodTemplate)
}

func TestRenderSessionTarget(t *testing.T) {
	t.Parallel()

	session := &florkv1.FlinkSession{
		ObjectMeta: metav1.ObjectMeta{Name: "shared", Namespace: "team-b"},
	}
	r, err := Render(logr.Discard(), FromFlinkSession(session))
	require.NoError(t, err)
	assert.Equal(t, ExecutionTargetSession, r.Conf[constants.FlinkKeyExecutionTarget])
}

func TestRenderShadowConfigFiles(t *testing.T) {
	t.Parallel()

	job := newJob()
	job.Spec.FlorkConf.ShadowConfigFiles = true
	job.Spec.FlinkConf[constants.FlinkKeyConfDir] = "/custom/conf"

	r, err := Render(logr.Discard(), FromFlinkJob(job))
	require.NoError(t, err)

	assert.Equal(t, constants.FlorkConfDir, r.ConfDir)
	assert.Equal(t, "/custom/conf", r.DesiredConfDir)
	assert.Equal(t, constants.FlorkConfDir, r.Conf[constants.FlinkKeyConfDir])
	assert.Equal(t, "/opt/flork/conf/task_manager_pod_template.yaml", r.Conf[constants.FlinkKeyTaskManagerTemplate])

	for _, pod := range []*corev1.Pod{r.JobManagerPodTemplate, r.TaskManagerPodTemplate} {
		require.Len(t, pod.Spec.Containers, 1)
		assert.Contains(t, pod.Spec.Containers[0].Env,
			corev1.EnvVar{Name: constants.EnvDesiredConfPath, Value: "/custom/conf"})
	}

	assert.Empty(t, job.Spec.JobManagerPodSpec.Containers[0].Env, "input spec must not be mutated")
	assert.Equal(t, "/custom/conf", job.Spec.FlinkConf[constants.FlinkKeyConfDir])
}

func TestRenderPodTemplates(t *testing.T) {
	t.Parallel()

	job := newJob()
	job.Spec.JobManagerPodMeta = &florkv1.PodMeta{
		Labels:      map[string]string{"team": "a"},
		Annotations: map[string]string{"prometheus.io/scrape": "true"},
	}
	job.Spec.TaskManagerPodSpec = &corev1.PodSpec{ServiceAccountName: "tm"}

	r, err := Render(logr.Discard(), FromFlinkJob(job))
	require.NoError(t, err)

	jm := r.JobManagerPodTemplate
	assert.Equal(t, "wordcount", jm.Name)
	assert.Equal(t, "a", jm.Labels["team"])
	assert.Equal(t, "true", jm.Annotations["prometheus.io/scrape"])
	assert.Equal(t, "3", jm.Annotations[AnnotationGeneration])

	tm := r.TaskManagerPodTemplate
	assert.Equal(t, "tm", tm.Spec.ServiceAccountName)
	assert.Empty(t, tm.Labels)

	var decoded corev1.Pod
	require.NoError(t, yaml.Unmarshal([]byte(r.Files[constants.FileJobManagerPodTemplate]), &decoded))
	assert.Equal(t, "flink:1.20", decoded.Spec.Containers[0].Image)
}

func TestRenderTaskManagerDefaultsToJobManagerSpec(t *testing.T) {
	t.Parallel()

	r, err := Render(logr.Discard(), FromFlinkJob(newJob()))
	require.NoError(t, err)

	assert.Equal(t, r.JobManagerPodTemplate.Spec, r.TaskManagerPodTemplate.Spec)
	r.TaskManagerPodTemplate.Spec.Containers[0].Image = "changed"
	assert.Equal(t, "flink:1.20", r.JobManagerPodTemplate.Spec.Containers[0].Image)
}

func TestRenderTaskManagerDropsJobManagerArgs(t *testing.T) {
	t.Parallel()

	job := newJob()
	job.Spec.JobManagerPodSpec.Containers[0].Args = []string{"standalone-job", "--job-classname", "org.example.WordCount"}
	job.Spec.JobManagerPodSpec.Containers = append(job.Spec.JobManagerPodSpec.Containers,
		corev1.Container{Name: "sidecar", Image: "busybox", Args: []string{"sleep", "infinity"}})

	r, err := Render(logr.Discard(), FromFlinkJob(job))
	require.NoError(t, err)

	assert.Equal(t, job.Spec.JobManagerPodSpec.Containers[0].Args, r.JobManagerPodTemplate.Spec.Containers[0].Args)
	assert.Empty(t, r.TaskManagerPodTemplate.Spec.Containers[0].Args)
	assert.Equal(t, []string{"sleep", "infinity"}, r.TaskManagerPodTemplate.Spec.Containers[1].Args)

	job.Spec.TaskManagerPodSpec = &corev1.PodSpec{Containers: []corev1.Container{
		{Name: "flink-main-container", Image: "flink:1.20", Args: []string{"taskmanager", "-Dfoo=bar"}},
	}}
	r, err = Render(logr.Discard(), FromFlinkJob(job))
	require.NoError(t, err)
	assert.Equal(t, []string{"taskmanager", "-Dfoo=bar"}, r.TaskManagerPodTemplate.Spec.Containers[0].Args,
		"an explicit TaskManager spec keeps its args")
}

func TestRenderAdditionalFiles(t *testing.T) {
	t.Parallel()

	job := newJob()
	job.Spec.AdditionalConfFiles = map[string]string{
		"log4j-console.properties": "rootLogger.level = INFO",
		constants.FileFlinkConf:    "ignored: true",
		constants.FilePodTemplate:  "ignored",
	}

	r, err := Render(logr.Discard(), FromFlinkJob(job))
	require.NoError(t, err)

	assert.Equal(t, "rootLogger.level = INFO", r.Files["log4j-console.properties"])
	assert.NotContains(t, r.Files, constants.FilePodTemplate)
	assert.NotContains(t, r.Files[constants.FileFlinkConf], "ignored")
}

func TestInjectDesiredConfPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		spec       corev1.PodSpec
		containers int
	}{
		{name: "adds missing container", spec: corev1.PodSpec{}, containers: 1},
		{
			name: "replaces existing value",
			spec: corev1.PodSpec{Containers: []corev1.Container{
				{Name: "sidecar"},
				{Name: constants.ContainerNameFlinkMain, Env: []corev1.EnvVar{
					{Name: "A", Value: "1"},
					{Name: constants.EnvDesiredConfPath, Value: "/old"},
				}},
			}},
			containers: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec := tt.spec.DeepCopy()
			InjectDesiredConfPath(spec, "/wanted")
			require.Len(t, spec.Containers, tt.containers)

			var found []string
			for _, c := range spec.Containers {
				for _, e := range c.Env {
					if e.Name == constants.EnvDesiredConfPath {
						assert.Equal(t, constants.ContainerNameFlinkMain, c.Name)
						found = append(found, e.Value)
					}
				}
			}
			assert.Equal(t, []string{"/wanted"}, found)
		})
	}
}

func TestFormatConf(t *testing.T) {
	t.Parallel()

	out := FormatConf(map[string]string{"b": "2", "a": "s3://bucket/path", "c": "true"})
	assert.Equal(t, "a: s3://bucket/path\nb: 2\nc: true\n", out)
	assert.Empty(t, FormatConf(nil))
}

func TestHighAvailabilityEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, HighAvailabilityEnabled(nil))
	assert.False(t, HighAvailabilityEnabled(florkv1.FlinkConf{"high-availability": "NONE"}))
	assert.True(t, HighAvailabilityEnabled(florkv1.FlinkConf{"high-availability": "kubernetes"}))
}
