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

package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

const hookNamespace = "flork"

func fakeClient(kube *fake.Clientset) ClientFunc {
	return func(string) (kubernetes.Interface, string, error) {
		return kube, hookNamespace, nil
	}
}

func noEnv(string) string { return "" }

func execute(t *testing.T, kube *fake.Clientset, env func(string) string, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(env, fakeClient(kube))
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func statusConfigMap(name string) *corev1.ConfigMap {
	return &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{
		Name:      name + constants.SuffixStatusConfigMap,
		Namespace: hookNamespace,
		Labels:    map[string]string{constants.LabelFlinkJobStatus: constants.LabelValueTrue},
	}}
}

func controllerService(selector map[string]string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "flork-controller", Namespace: hookNamespace},
		Spec: corev1.ServiceSpec{
			Selector: selector,
			Ports:    []corev1.ServicePort{{Name: "https", Port: 443}},
		},
	}
}

func TestUpgradePreconditions(t *testing.T) {
	tests := []struct {
		name    string
		objects []corev1.Service
		args    []string
		wantErr error
	}{
		{name: "missing phase", args: []string{"upgrade"}},
		{name: "invalid phase", args: []string{"upgrade", "during", "flork-controller"}},
		{name: "missing service name", args: []string{"upgrade", "pre"}, wantErr: operatorerrors.ErrPermanentConfig},
		{name: "service not found", args: []string{"upgrade", "pre", "flork-controller"}, wantErr: operatorerrors.ErrNotFound},
		{
			name:    "unknown port name",
			objects: []corev1.Service{*controllerService(map[string]string{"app": "flork"})},
			args:    []string{"upgrade", "post", "flork-controller", "", "metrics"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kube := fake.NewSimpleClientset()
			for i := range tt.objects {
				_, err := kube.CoreV1().Services(hookNamespace).Create(context.Background(), &tt.objects[i], metav1.CreateOptions{})
				require.NoError(t, err)
			}

			err := execute(t, kube, noEnv, tt.args...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestUpgradeWithoutPodsSucceeds(t *testing.T) {
	kube := fake.NewSimpleClientset(controllerService(map[string]string{"app": "flork"}))

	require.NoError(t, execute(t, kube, noEnv, "upgrade", "PRE", "flork-controller"))
	require.NoError(t, execute(t, kube, noEnv, "upgrade", "post", "flork-controller", "/flork"))
}

func TestUpgradeRejectsInvalidPauseDuration(t *testing.T) {
	kube := fake.NewSimpleClientset(controllerService(map[string]string{"app": "flork"}))
	env := func(key string) string {
		if key == constants.EnvPauseDurationSeconds {
			return "soon"
		}
		return ""
	}

	err := execute(t, kube, env, "upgrade", "pre", "flork-controller")
	require.Error(t, err)
	assert.True(t, errors.Is(err, operatorerrors.ErrPermanentConfig))
}

func TestUpgradeCAFlags(t *testing.T) {
	kube := fake.NewSimpleClientset(controllerService(map[string]string{"app": "flork"}))

	missing := filepath.Join(t.TempDir(), "ca.crt")
	require.Error(t, execute(t, kube, noEnv, "upgrade", "pre", "flork-controller", "--ca-file", missing))

	notPEM := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(notPEM, []byte("not a certificate"), 0o600))
	require.Error(t, execute(t, kube, noEnv, "upgrade", "pre", "flork-controller", "--ca-file", notPEM))

	err := execute(t, kube, noEnv, "upgrade", "pre", "flork-controller", "--ca-secret", "flork-webhook-ca")
	require.Error(t, err)
	assert.True(t, errors.Is(err, operatorerrors.ErrPermanentPrerequisitesMissing))
}

func TestPostDelete(t *testing.T) {
	unrelated := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "settings", Namespace: hookNamespace}}
	elsewhere := statusConfigMap("other")
	elsewhere.Namespace = "team-b"
	kube := fake.NewSimpleClientset(statusConfigMap("wordcount"), statusConfigMap("sessions"), unrelated, elsewhere)

	require.NoError(t, execute(t, kube, noEnv, "post-delete"))

	remaining, err := kube.CoreV1().ConfigMaps("").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	names := make([]string, 0, len(remaining.Items))
	for _, cm := range remaining.Items {
		names = append(names, cm.Namespace+"/"+cm.Name)
	}
	assert.ElementsMatch(t, []string{"flork/settings", "team-b/other-flork-status"}, names)
}

func TestPostDeleteRejectsArguments(t *testing.T) {
	require.Error(t, execute(t, fake.NewSimpleClientset(), noEnv, "post-delete", "extra"))
}
