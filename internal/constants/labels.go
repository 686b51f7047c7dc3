package constants

// Common Kubernetes label keys used by the operator.
const (
	LabelAppName      = "app.kubernetes.io/name"
	LabelAppInstance  = "app.kubernetes.io/instance"
	LabelAppManagedBy = "app.kubernetes.io/managed-by"
	LabelAppComponent = "app.kubernetes.io/component"

	// LabelFlinkJob marks a ConfigMap carrying a FlinkJob definition.
	LabelFlinkJob = "flork.itom.com/flink-job"
	// LabelFlinkSession excludes session ConfigMaps from the job watch.
	LabelFlinkSession = "flork.itom.com/flink-session"
	// LabelFlinkJobStatus marks the status ConfigMap paired with a job ConfigMap.
	LabelFlinkJobStatus = "flork.itom.com/flink-job-status"
	// LabelValidity records whether the last processing of a job ConfigMap succeeded.
	LabelValidity = "validity.flork.itom.com"
)

// Labels written by Flink native Kubernetes HA on its leader ConfigMaps.
const (
	LabelHAApp           = "app"
	LabelHAConfigMapType = "configmap-type"
	LabelHAType          = "type"

	LabelValueHAConfigMapType = "high-availability"
	LabelValueHAType          = "flink-native-kubernetes"
)

// Common label values used by the operator.
const (
	LabelValueAppNameFlink         = "flink"
	LabelValueAppManagedByFlork    = "flork-operator"
	LabelValueComponentJobManager  = "jobmanager"
	LabelValueComponentTaskManager = "taskmanager"
	LabelValueTrue                 = "true"
	LabelValueFalse                = "false"
)

// Selectors used by the ConfigMap-backed controller.
const (
	SelectorOuterJobConfigMaps = LabelFlinkJob + ",!" + LabelFlinkSession
	SelectorStatusConfigMaps   = LabelFlinkJobStatus
)
