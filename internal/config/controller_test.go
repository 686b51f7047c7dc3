package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadControllerConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadControllerConfig(envFrom(map[string]string{
		"MANAGED_NAMESPACES": "team-a, team-b",
		"POD_NAME":           "flork-7d9c-abcde",
	}))
	require.NoError(t, err)

	assert.Equal(t, ModeCRD, cfg.Mode)
	assert.Equal(t, "default", cfg.TenantID)
	assert.Equal(t, []string{"team-a", "team-b"}, cfg.ManagedNamespaces)
	assert.Equal(t, 30*time.Second, cfg.ResyncPeriod)
	assert.Equal(t, "default", cfg.PodNamespace)
	assert.Equal(t, "flork-7d9c-abcde", cfg.Identity)
	assert.Equal(t, 2, cfg.ReconcilerWorkers)
	assert.Equal(t, "*/15 * * * *", cfg.StatusJanitorSchedule)
	assert.Equal(t, 600*time.Second, cfg.PauseDuration)
	assert.False(t, cfg.AllNamespaces())
}

func TestLoadControllerConfigGeneratesIdentity(t *testing.T) {
	t.Parallel()

	cfg, err := LoadControllerConfig(envFrom(map[string]string{"MANAGED_NAMESPACES": "*"}))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Identity)
	assert.True(t, cfg.AllNamespaces())
}

func TestLoadControllerConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		env        map[string]string
		errContain string
	}{
		{
			name:       "missing namespaces in crd mode",
			env:        map[string]string{},
			errContain: "MANAGED_NAMESPACES environment variable is required",
		},
		{
			name:       "wildcard mixed with explicit namespaces",
			env:        map[string]string{"MANAGED_NAMESPACES": "*,team-a"},
			errContain: "cannot be combined",
		},
		{
			name:       "non numeric resync",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "INFORMER_RESYNC_PERIOD_SECONDS": "soon"},
			errContain: "invalid INFORMER_RESYNC_PERIOD_SECONDS",
		},
		{
			name:       "zero resync",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "INFORMER_RESYNC_PERIOD_SECONDS": "0"},
			errContain: "greater than 0",
		},
		{
			name:       "resync not above lease duration",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "INFORMER_RESYNC_PERIOD_SECONDS": "15"},
			errContain: "must exceed the lease duration",
		},
		{
			name:       "resync overflows a duration",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "INFORMER_RESYNC_PERIOD_SECONDS": "10000000000"},
			errContain: "INFORMER_RESYNC_PERIOD_SECONDS value 10000000000 is out of range",
		},
		{
			name:       "pause duration overflows a duration",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "PAUSE_DURATION_SECONDS": "10000000000"},
			errContain: "PAUSE_DURATION_SECONDS value 10000000000 is out of range",
		},
		{
			name:       "unknown mode",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "FLORK_MODE": "hybrid"},
			errContain: "unknown FLORK_MODE",
		},
		{
			name:       "bad janitor schedule",
			env:        map[string]string{"FLORK_MODE": "configmap", "STATUS_JANITOR_SCHEDULE": "every tuesday"},
			errContain: "invalid STATUS_JANITOR_SCHEDULE",
		},
		{
			name:       "bad worker count",
			env:        map[string]string{"MANAGED_NAMESPACES": "a", "RECONCILER_WORKERS": "0"},
			errContain: "reconciler workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadControllerConfig(envFrom(tt.env))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errContain)
			assert.True(t, errors.Is(err, operatorerrors.ErrPermanentConfig))
		})
	}
}

func TestLoadControllerConfigConfigMapMode(t *testing.T) {
	t.Parallel()

	cfg, err := LoadControllerConfig(envFrom(map[string]string{
		"FLORK_MODE":                     "ConfigMap",
		"POD_NAMESPACE":                  "flork-system",
		"TENANT_ID":                      "tenant-1",
		"INFORMER_RESYNC_PERIOD_SECONDS": "45",
		"STATUS_JANITOR_SCHEDULE":        "0 * * * *",
	}))
	require.NoError(t, err)

	assert.Equal(t, ModeConfigMap, cfg.Mode)
	assert.Equal(t, "flork-system", cfg.PodNamespace)
	assert.Equal(t, "tenant-1", cfg.TenantID)
	assert.Equal(t, 45*time.Second, cfg.ResyncPeriod)
	assert.Empty(t, cfg.ManagedNamespaces)
}

func TestValidateNamespaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		namespaces []string
		wantErr    bool
	}{
		{name: "wildcard alone", namespaces: []string{"*"}},
		{name: "explicit namespaces", namespaces: []string{"team-a", "team-b"}},
		{name: "wildcard with explicit", namespaces: []string{"*", "team-a"}, wantErr: true},
		{name: "empty", namespaces: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateNamespaces(tt.namespaces)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseNamespaces(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, ParseNamespaces(" a,,b , a "))
	assert.Nil(t, ParseNamespaces(""))
}
