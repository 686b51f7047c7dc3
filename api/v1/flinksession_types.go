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

// FlinkSessionSpec defines the desired state of a Flink session cluster.
type FlinkSessionSpec struct {
	// +optional
	FlorkConf FlorkConf `json:"florkConf,omitempty"`
	// +optional
	FlinkConf FlinkConf `json:"flinkConf,omitempty"`

	JobManagerPodSpec corev1.PodSpec `json:"jobManagerPodSpec"`
	// +optional
	TaskManagerPodSpec *corev1.PodSpec `json:"taskManagerPodSpec,omitempty"`
}

// FlinkSessionStatus defines the observed state of FlinkSession.
type FlinkSessionStatus struct {
	// +optional
	FlorkPhase FlorkPhase `json:"florkPhase,omitempty"`
	// +optional
	GenerationDuringLastTransition int64 `json:"generationDuringLastTransition,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=flinksessions,scope=Namespaced,shortName=fs

// FlinkSession is the Schema for the flinksessions API.
type FlinkSession struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec FlinkSessionSpec `json:"spec"`

	// +optional
	Status FlinkSessionStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FlinkSessionList contains a list of FlinkSession.
type FlinkSessionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata"`
	Items           []FlinkSession `json:"items"`
}

func init() {
	SchemeBuilder.Register(&FlinkSession{}, &FlinkSessionList{})
}
