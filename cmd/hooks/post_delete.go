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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/logging"
)

func newPostDeleteCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post-delete",
		Short: "Delete the status ConfigMaps left behind by the ConfigMap-backed controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.postDelete(cmd)
		},
	}
}

func (o *rootOptions) postDelete(cmd *cobra.Command) error {
	kube, namespace, err := o.client()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	configMaps := kube.CoreV1().ConfigMaps(namespace)

	list, err := configMaps.List(ctx, metav1.ListOptions{LabelSelector: constants.SelectorStatusConfigMaps})
	if err != nil {
		return fmt.Errorf("failed to list status ConfigMaps: %w", err)
	}

	var errs []error
	deleted := 0
	for i := range list.Items {
		name := list.Items[i].Name
		if err := configMaps.Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
			if !apierrors.IsNotFound(err) {
				errs = append(errs, fmt.Errorf("failed to delete ConfigMap %s: %w", name, err))
			}
			continue
		}
		deleted++
		logging.LogAuditEvent(o.log, logging.EventStatusConfigMapDeleted, map[string]string{
			"namespace": namespace,
			"name":      name,
			"reason":    "release deleted",
		})
	}
	o.log.Info("Removed status ConfigMaps", "namespace", namespace, "deleted", deleted)
	return errors.Join(errs...)
}
