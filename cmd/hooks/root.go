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

// Package hooks implements the short-lived Helm hook commands that run next to
// a controller release: the upgrade broadcast and the post-delete cleanup.
package hooks

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/flork/flork-operator/internal/logging"
)

// ClientFunc returns a clientset and the namespace the hook operates in.
type ClientFunc func(kubeconfig string) (kubernetes.Interface, string, error)

type rootOptions struct {
	kubeconfig string
	logFormat  string
	getenv     func(string) string
	newClient  ClientFunc
	log        logr.Logger
}

// Run executes the hooks command tree with args.
func Run(args []string) error {
	cmd := NewRootCommand(os.Getenv, InClusterOrKubeconfig)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctrl.SetupSignalHandler())
}

// NewRootCommand builds the hooks command tree.
func NewRootCommand(getenv func(string) string, newClient ClientFunc) *cobra.Command {
	opts := &rootOptions{getenv: getenv, newClient: newClient, log: logr.Discard()}

	root := &cobra.Command{
		Use:           "hooks",
		Short:         "Helm hooks of the flork controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log, err := logging.NewLogger(opts.logFormat, true)
			if err != nil {
				return err
			}
			ctrl.SetLogger(log)
			opts.log = log.WithName("hooks")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.kubeconfig, "kubeconfig", "",
		"Path to a kubeconfig. Defaults to the in-cluster configuration.")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log encoding, json or console.")

	root.AddCommand(newUpgradeCommand(opts), newPostDeleteCommand(opts))
	return root
}

// InClusterOrKubeconfig resolves the client the way kubectl does. The namespace
// is the one of the current context, or of the service account when in-cluster.
func InClusterOrKubeconfig(kubeconfig string) (kubernetes.Interface, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfig
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{})

	namespace, _, err := clientConfig.Namespace()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve namespace: %w", err)
	}
	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load client configuration: %w", err)
	}
	kube, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	return kube, namespace, nil
}

func (o *rootOptions) client() (kubernetes.Interface, string, error) {
	return o.newClient(o.kubeconfig)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
