package constants

// Resource name suffixes used by the operator when creating per-job resources.
const (
	SuffixConfConfigMap   = "-flork-conf"
	SuffixStatusConfigMap = "-flork-status"
	SuffixTaskManager     = "-taskmanager"
)

// Prefix of the per-resource Lease used to elect a single writer.
const LeasePrefix = "flork-lease-"

// Keys inside ConfigMaps managed or read by the operator.
const (
	KeyCustomResource = "customResource"
	KeyCRMetadata     = "crMetadata"
	KeyCRStatus       = "crStatus"
	KeyException      = "exception"
)

// Names of files rendered into the configuration directory.
const (
	FileFlinkConf              = "flink-conf.yaml"
	FilePodTemplate            = "pod_template.yaml"
	FileJobManagerPodTemplate  = "job_manager_pod_template.yaml"
	FileTaskManagerPodTemplate = "task_manager_pod_template.yaml"
)

// Well-known container names.
const (
	ContainerNameFlinkMain = "flink-main-container"
)

// CRD identity.
const (
	CRDNameFlinkJobs     = "flinkjobs.flork.itom.com"
	CRDNameFlinkSessions = "flinksessions.flork.itom.com"
	KindFlinkJob         = "FlinkJob"
	KindFlinkSession     = "FlinkSession"
)
