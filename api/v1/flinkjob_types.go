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
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FlinkJobSpec defines the desired state of a Flink application cluster.
type FlinkJobSpec struct {
	// +optional
	FlorkConf FlorkConf `json:"florkConf,omitempty"`

	// FlinkConf is rendered into flink-conf.yaml.
	// +optional
	FlinkConf FlinkConf `json:"flinkConf,omitempty"`

	// JobClassName is the entry class of the application jar.
	// +optional
	JobClassName string `json:"jobClassName,omitempty"`

	// +optional
	JobArgs []string `json:"jobArgs,omitempty"`

	// JobManagerPodMeta is merged into the job manager pod template metadata.
	// +optional
	JobManagerPodMeta *PodMeta `json:"jobManagerPodMeta,omitempty"`

	JobManagerPodSpec corev1.PodSpec `json:"jobManagerPodSpec"`

	// TaskManagerPodSpec defaults to a copy of JobManagerPodSpec.
	// +optional
	TaskManagerPodSpec *corev1.PodSpec `json:"taskManagerPodSpec,omitempty"`

	// AdditionalConfFiles are written next to flink-conf.yaml.
	// The keys flink-conf.yaml and pod_template.yaml are reserved.
	// +optional
	AdditionalConfFiles map[string]string `json:"additionalConfFiles,omitempty"`
}

// FlinkJobStatus defines the observed state of FlinkJob.
type FlinkJobStatus struct {
	// +optional
	FlorkPhase FlorkPhase `json:"florkPhase,omitempty"`

	// GenerationDuringLastTransition is the metadata.generation that produced FlorkPhase.
	// +optional
	GenerationDuringLastTransition int64 `json:"generationDuringLastTransition,omitempty"`

	// +optional
	KnownSavepointPath string `json:"knownSavepointPath,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=flinkjobs,scope=Namespaced,shortName=fj
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.florkPhase`

// FlinkJob is the Schema for the flinkjobs API.
type FlinkJob struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec FlinkJobSpec `json:"spec"`

	// +optional
	Status FlinkJobStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FlinkJobList contains a list of FlinkJob.
type FlinkJobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata"`
	Items           []FlinkJob `json:"items"`
}

func init() {
	SchemeBuilder.Register(&FlinkJob{}, &FlinkJobList{})
}
