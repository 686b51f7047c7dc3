package v1

import (
	"reflect"
	"testing"

	"sigs.k8s.io/yaml"
)

func TestFlinkConfAcceptsScalars(t *testing.T) {
	t.Parallel()

	var spec FlinkJobSpec
	doc := []byte(`
flinkConf:
  parallelism.default: 4
  high-availability: kubernetes
  rest.flamegraph.enabled: true
  taskmanager.memory.managed.fraction: 0.25
jobManagerPodSpec:
  containers: []
`)
	if err := yaml.Unmarshal(doc, &spec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := FlinkConf{
		"parallelism.default":                 "4",
		"high-availability":                   "kubernetes",
		"rest.flamegraph.enabled":             "true",
		"taskmanager.memory.managed.fraction": "0.25",
	}
	if !reflect.DeepEqual(spec.FlinkConf, want) {
		t.Fatalf("FlinkConf=%v, want %v", spec.FlinkConf, want)
	}
}

func TestFlinkConfRejectsNestedValues(t *testing.T) {
	t.Parallel()

	var conf FlinkConf
	if err := conf.UnmarshalJSON([]byte(`{"a":{"b":"c"}}`)); err == nil {
		t.Fatalf("expected error for nested value")
	}
}

func TestFlorkConfDefaults(t *testing.T) {
	t.Parallel()

	var nilConf *FlorkConf
	if !nilConf.PrefersClusterInternalService() || !nilConf.CleansHighAvailability() {
		t.Fatalf("nil FlorkConf should default to true")
	}

	off := false
	conf := &FlorkConf{PreferClusterInternalService: &off, CleanHighAvailability: &off}
	if conf.PrefersClusterInternalService() {
		t.Fatalf("PrefersClusterInternalService=true with explicit false")
	}
	if conf.CleansHighAvailability() {
		t.Fatalf("CleansHighAvailability=true with explicit false")
	}
	if conf.ShadowConfigFiles {
		t.Fatalf("ShadowConfigFiles should default to false")
	}
}

func TestFlinkJobDeepCopyIsIndependent(t *testing.T) {
	t.Parallel()

	in := &FlinkJob{Spec: FlinkJobSpec{
		FlinkConf:           FlinkConf{"a": "1"},
		JobArgs:             []string{"--x"},
		AdditionalConfFiles: map[string]string{"log4j.properties": "x"},
	}}
	out := in.DeepCopy()
	out.Spec.FlinkConf["a"] = "2"
	out.Spec.JobArgs[0] = "--y"
	out.Spec.AdditionalConfFiles["log4j.properties"] = "y"

	if in.Spec.FlinkConf["a"] != "1" || in.Spec.JobArgs[0] != "--x" || in.Spec.AdditionalConfFiles["log4j.properties"] != "x" {
		t.Fatalf("DeepCopy shares state with the original: %+v", in.Spec)
	}
}
