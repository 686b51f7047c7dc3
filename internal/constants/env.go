package constants

// Environment variable keys read by the controller and the hooks binary.
const (
	EnvManagedNamespaces     = "MANAGED_NAMESPACES"
	EnvTenantID              = "TENANT_ID"
	EnvInformerResyncSeconds = "INFORMER_RESYNC_PERIOD_SECONDS"
	EnvMode                  = "FLORK_MODE"
	EnvPodNamespace          = "POD_NAMESPACE"
	EnvPodName               = "POD_NAME"
	EnvStatusJanitorSchedule = "STATUS_JANITOR_SCHEDULE"
	EnvReconcilerWorkers     = "RECONCILER_WORKERS"
	EnvPauseDurationSeconds  = "PAUSE_DURATION_SECONDS"

	// EnvDesiredConfPath is injected into Flink containers when configuration files are shadowed.
	EnvDesiredConfPath = "FLORK_DESIRED_FLINK_CONF_PATH"
)

// Defaults for the values above.
const (
	DefaultTenantID              = "default"
	DefaultNamespace             = "default"
	DefaultResyncSeconds         = 30
	DefaultPauseDurationSeconds  = 600
	DefaultReconcilerWorkers     = 2
	DefaultStatusJanitorSchedule = "*/15 * * * *"

	// AllNamespaces is the only token allowed to stand for every namespace.
	AllNamespaces = "*"
)
