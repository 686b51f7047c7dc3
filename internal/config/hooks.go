package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

// HookConfig is the configuration of the hooks binary.
type HookConfig struct {
	// PauseDuration is sent to every pod during the pre-upgrade broadcast.
	PauseDuration time.Duration
}

// PauseSeconds returns the pause duration in whole seconds.
func (c *HookConfig) PauseSeconds() int64 {
	return int64(c.PauseDuration / time.Second)
}

// LoadHookConfig reads the hooks configuration through getenv.
func LoadHookConfig(getenv func(string) string) (*HookConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &HookConfig{PauseDuration: constants.DefaultPauseDurationSeconds * time.Second}
	raw := strings.TrimSpace(getenv(constants.EnvPauseDurationSeconds))
	if raw == "" {
		return cfg, nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("invalid %s value %q: %w", constants.EnvPauseDurationSeconds, raw, err))
	}
	if seconds <= 0 {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("%s must be greater than 0", constants.EnvPauseDurationSeconds))
	}
	if seconds > constants.MaxDurationSeconds {
		return nil, operatorerrors.WrapPermanentConfig(fmt.Errorf("%s must be at most %d", constants.EnvPauseDurationSeconds, constants.MaxDurationSeconds))
	}
	cfg.PauseDuration = time.Duration(seconds) * time.Second
	return cfg, nil
}
