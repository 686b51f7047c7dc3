// Package config loads the environment driven configuration of the controller
// and the hooks binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

// Mode selects which controller variant runs in the process.
type Mode string

const (
	// ModeCRD watches FlinkJob and FlinkSession custom resources.
	ModeCRD Mode = "crd"
	// ModeConfigMap watches labelled ConfigMaps in the pod namespace.
	ModeConfigMap Mode = "configmap"
)

// ControllerConfig is the validated configuration of the controller process.
type ControllerConfig struct {
	Mode              Mode
	TenantID          string
	ManagedNamespaces []string
	ResyncPeriod      time.Duration

	// PodNamespace is the namespace watched in ConfigMap mode.
	PodNamespace string
	// Identity is used as the holder identity of per-resource leases.
	Identity string

	ReconcilerWorkers     int
	StatusJanitorSchedule string
	PauseDuration         time.Duration
}

// AllNamespaces reports whether the configuration selects every namespace.
func (c *ControllerConfig) AllNamespaces() bool {
	return len(c.ManagedNamespaces) == 1 && c.ManagedNamespaces[0] == constants.AllNamespaces
}

// Validate checks the configuration and returns a permanent config error on failure.
func (c *ControllerConfig) Validate() error {
	if err := c.validate(); err != nil {
		return operatorerrors.WrapPermanentConfig(err)
	}
	return nil
}

func (c *ControllerConfig) validate() error {
	switch c.Mode {
	case ModeCRD:
		if err := ValidateNamespaces(c.ManagedNamespaces); err != nil {
			return err
		}
	case ModeConfigMap:
		if strings.TrimSpace(c.PodNamespace) == "" {
			return fmt.Errorf("pod namespace is required in %s mode", ModeConfigMap)
		}
		if _, err := cron.ParseStandard(c.StatusJanitorSchedule); err != nil {
			return fmt.Errorf("invalid %s %q: %w", constants.EnvStatusJanitorSchedule, c.StatusJanitorSchedule, err)
		}
	default:
		return fmt.Errorf("unknown %s %q (expected %q or %q)", constants.EnvMode, c.Mode, ModeCRD, ModeConfigMap)
	}

	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("tenant id must not be empty")
	}
	if c.ResyncPeriod <= 0 {
		return fmt.Errorf("informer resync period must be greater than 0")
	}
	if c.ResyncPeriod <= constants.LeaseDuration {
		return fmt.Errorf("informer resync period %s must exceed the lease duration %s", c.ResyncPeriod, constants.LeaseDuration)
	}
	if c.ReconcilerWorkers <= 0 {
		return fmt.Errorf("reconciler workers must be greater than 0")
	}
	if c.PauseDuration <= 0 {
		return fmt.Errorf("pause duration must be greater than 0")
	}
	if strings.TrimSpace(c.Identity) == "" {
		return fmt.Errorf("lease identity must not be empty")
	}
	return nil
}

// ValidateNamespaces checks a managed namespace list. The all-namespaces token
// is only valid on its own.
func ValidateNamespaces(namespaces []string) error {
	if len(namespaces) == 0 {
		return fmt.Errorf("%s environment variable is required", constants.EnvManagedNamespaces)
	}
	for _, ns := range namespaces {
		if ns == constants.AllNamespaces && len(namespaces) > 1 {
			return fmt.Errorf("%q cannot be combined with explicit namespaces in %s", constants.AllNamespaces, constants.EnvManagedNamespaces)
		}
	}
	return nil
}

// ParseNamespaces splits a comma separated namespace list, dropping blanks and duplicates.
func ParseNamespaces(raw string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		ns := strings.TrimSpace(part)
		if ns == "" {
			continue
		}
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		out = append(out, ns)
	}
	return out
}

// LoadControllerConfig reads the controller configuration through getenv and validates it.
// A nil getenv reads the process environment.
func LoadControllerConfig(getenv func(string) string) (*ControllerConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := &ControllerConfig{
		Mode:                  ModeCRD,
		TenantID:              constants.DefaultTenantID,
		ManagedNamespaces:     ParseNamespaces(env(constants.EnvManagedNamespaces)),
		ResyncPeriod:          constants.DefaultResyncSeconds * time.Second,
		PodNamespace:          constants.DefaultNamespace,
		ReconcilerWorkers:     constants.DefaultReconcilerWorkers,
		StatusJanitorSchedule: constants.DefaultStatusJanitorSchedule,
		PauseDuration:         constants.DefaultPauseDurationSeconds * time.Second,
	}

	if v := env(constants.EnvMode); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if v := env(constants.EnvTenantID); v != "" {
		cfg.TenantID = v
	}
	if v := env(constants.EnvPodNamespace); v != "" {
		cfg.PodNamespace = v
	}
	if v := env(constants.EnvStatusJanitorSchedule); v != "" {
		cfg.StatusJanitorSchedule = v
	}

	var err error
	if cfg.ResyncPeriod, err = secondsFromEnv(env, constants.EnvInformerResyncSeconds, cfg.ResyncPeriod); err != nil {
		return nil, err
	}
	if cfg.PauseDuration, err = secondsFromEnv(env, constants.EnvPauseDurationSeconds, cfg.PauseDuration); err != nil {
		return nil, err
	}
	if v := env(constants.EnvReconcilerWorkers); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("invalid %s value %q: %w", constants.EnvReconcilerWorkers, v, err))
		}
		cfg.ReconcilerWorkers = workers
	}

	cfg.Identity = env(constants.EnvPodName)
	if cfg.Identity == "" {
		cfg.Identity = defaultIdentity()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func secondsFromEnv(env func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	seconds, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, operatorerrors.WrapPermanentConfig(fmt.Errorf("invalid %s value %q: %w", key, v, err))
	}
	if seconds > constants.MaxDurationSeconds || seconds < -constants.MaxDurationSeconds {
		return 0, operatorerrors.WrapPermanentConfig(fmt.Errorf("%s value %d is out of range", key, seconds))
	}
	return time.Duration(seconds) * time.Second, nil
}

func defaultIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "flork-operator"
	}
	return host + "_" + uuid.NewString()
}
