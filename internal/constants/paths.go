package constants

// Filesystem locations inside Flink pods.
const (
	// FlorkConfDir is where the operator mounts the generated configuration.
	// Users may not point the engine configuration directory at it.
	FlorkConfDir = "/opt/flork/conf"
	// FlinkDefaultConfDir is used when the resource does not choose a directory.
	FlinkDefaultConfDir = "/opt/flink/conf"
)

// Flink configuration keys the operator reads or forces.
const (
	FlinkKeyConfDir             = "kubernetes.flink.conf.dir"
	FlinkKeyLegacyConfDir       = "flink.conf.dir"
	FlinkKeyExecutionTarget     = "execution.target"
	FlinkKeyNamespace           = "kubernetes.namespace"
	FlinkKeyClusterID           = "kubernetes.cluster-id"
	FlinkKeyJobManagerTemplate  = "kubernetes.pod-template-file.jobmanager"
	FlinkKeyTaskManagerTemplate = "kubernetes.pod-template-file.taskmanager"
	FlinkKeyDeploymentConfigDir = "$internal.deployment.config-dir"
	FlinkKeyHighAvailability    = "high-availability"
	FlinkKeyHAStorageDir        = "high-availability.storageDir"
	FlinkKeyRestPort            = "rest.port"
	FlinkKeyServiceExposedType  = "kubernetes.rest-service.exposed.type"
)

// HTTP paths served by the controller.
const (
	PathPreUpgrade            = "/no-crd/helm-hooks/pre-upgrade"
	PathPostUpgrade           = "/no-crd/helm-hooks/post-upgrade"
	PathAdmissionFlinkJob     = "/webhooks/admission/flinkjob"
	PathAdmissionFlinkSession = "/webhooks/admission/flinksession"
)

// Flink keys and defaults read by the deployer.
const (
	FlinkKeyRPCAddress  = "jobmanager.rpc.address"
	FlinkKeyRPCPort     = "jobmanager.rpc.port"
	FlinkKeyBlobPort    = "blob.server.port"
	FlinkKeyParallelism = "parallelism.default"
	FlinkKeyTaskSlots   = "taskmanager.numberOfTaskSlots"

	FlinkDefaultRPCPort  = 6123
	FlinkDefaultBlobPort = 6124
	FlinkDefaultRESTPort = 8081
)

const (
	// EnvFlinkConfDir tells the Flink scripts where the configuration lives.
	EnvFlinkConfDir = "FLINK_CONF_DIR"
	// VolumeNameFlorkConf is the pod volume carrying the rendered configuration.
	VolumeNameFlorkConf = "flork-conf"
)
