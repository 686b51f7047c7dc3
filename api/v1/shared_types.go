/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlorkPhase is the lifecycle phase the controller reports for a Flink resource.
// +kubebuilder:validation:Enum=CREATED;DEPLOYING;DEPLOYED;FAILED
type FlorkPhase string

const (
	FlorkPhaseCreated   FlorkPhase = "CREATED"
	FlorkPhaseDeploying FlorkPhase = "DEPLOYING"
	FlorkPhaseDeployed  FlorkPhase = "DEPLOYED"
	FlorkPhaseFailed    FlorkPhase = "FAILED"
)

// FlorkConf holds controller-level switches that are not part of the engine configuration.
type FlorkConf struct {
	// ShadowConfigFiles mounts the generated configuration under the controller's
	// reserved directory and exposes the user's desired directory through an env var.
	// +optional
	ShadowConfigFiles bool `json:"shadowConfigFiles,omitempty"`

	// PreferClusterInternalService makes the controller talk to the job manager
	// through its cluster-internal Service. Defaults to true.
	// +optional
	PreferClusterInternalService *bool `json:"preferClusterInternalService,omitempty"`

	// CleanHighAvailability removes high-availability state when the resource is
	// deleted. Defaults to true.
	// +optional
	CleanHighAvailability *bool `json:"cleanHighAvailability,omitempty"`
}

// PrefersClusterInternalService returns the effective value of PreferClusterInternalService.
func (c *FlorkConf) PrefersClusterInternalService() bool {
	if c == nil || c.PreferClusterInternalService == nil {
		return true
	}
	return *c.PreferClusterInternalService
}

// CleansHighAvailability returns the effective value of CleanHighAvailability.
func (c *FlorkConf) CleansHighAvailability() bool {
	if c == nil || c.CleanHighAvailability == nil {
		return true
	}
	return *c.CleanHighAvailability
}

// FlinkConf is the engine configuration (the content of flink-conf.yaml).
// Scalar values of any JSON type are accepted and kept in their string form.
type FlinkConf map[string]string

// UnmarshalJSON accepts string, number and boolean values.
func (f *FlinkConf) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}

	out := make(FlinkConf, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}

		var scalar any
		if err := json.Unmarshal(value, &scalar); err != nil {
			return fmt.Errorf("flinkConf[%s]: %w", key, err)
		}
		switch v := scalar.(type) {
		case nil:
			out[key] = ""
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Errorf("flinkConf[%s]: only scalar values are supported", key)
		}
	}
	*f = out
	return nil
}

// PodMeta carries the labels and annotations applied to a generated pod template.
type PodMeta struct {
	// +optional
	Labels map[string]string `json:"labels,omitempty"`
	// +optional
	Annotations map[string]string `json:"annotations,omitempty"`
}
