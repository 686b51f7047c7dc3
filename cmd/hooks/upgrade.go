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
	"crypto/x509"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/upgrade"
)

type upgradeOptions struct {
	*rootOptions
	caFile             string
	caSecret           string
	insecureSkipVerify bool
}

func newUpgradeCommand(root *rootOptions) *cobra.Command {
	opts := &upgradeOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "upgrade PHASE SERVICE [PATH_PREFIX] [PORT_NAME]",
		Short: "Broadcast an upgrade phase to every controller pod behind SERVICE",
		Long: `Sends the pre-upgrade or post-upgrade hook request to every pod selected by
SERVICE. A failing pod is logged and does not stop the broadcast. The post phase
is skipped until pods of at least two template generations exist.`,
		Args: cobra.RangeArgs(1, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}
	cmd.Flags().StringVar(&opts.caFile, "ca-file", "", "PEM bundle used to verify the controller pods.")
	cmd.Flags().StringVar(&opts.caSecret, "ca-secret", "",
		"Secret in the hook namespace whose ca.crt is used to verify the controller pods.")
	cmd.Flags().BoolVar(&opts.insecureSkipVerify, "insecure-skip-verify", false,
		"Do not verify the certificate chain of the controller pods.")
	return cmd
}

func (o *upgradeOptions) run(cmd *cobra.Command, args []string) error {
	phase, err := upgrade.ParsePhase(args[0])
	if err != nil {
		return err
	}
	req := upgrade.BroadcastRequest{Phase: phase}
	if len(args) > 1 {
		req.ServiceName = args[1]
	}
	if len(args) > 2 {
		req.PathPrefix = args[2]
	}
	if len(args) > 3 {
		req.PortName = args[3]
	}

	hookConfig, err := config.LoadHookConfig(o.getenv)
	if err != nil {
		return err
	}
	req.PauseSeconds = hookConfig.PauseSeconds()

	kube, namespace, err := o.client()
	if err != nil {
		return err
	}
	req.Namespace = namespace

	ctx := commandContext(cmd)
	var roots *x509.CertPool
	switch {
	case o.caFile != "":
		roots, err = readCAFile(o.caFile)
	case o.caSecret != "":
		roots, err = upgrade.ReadCACertSecret(ctx, kube.CoreV1().Secrets(namespace), o.caSecret)
	}
	if err != nil {
		return err
	}

	broadcaster := upgrade.NewBroadcaster(o.log, kube, upgrade.NewHookHTTPClient(roots, o.insecureSkipVerify))
	result, err := broadcaster.Run(ctx, req)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		o.log.Info("Some controller pods did not acknowledge the upgrade hook",
			"failed", result.Failed, "targets", len(result.Targets))
	}
	return nil
}

func readCAFile(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA file %s does not contain a PEM certificate", path)
	}
	return pool, nil
}
