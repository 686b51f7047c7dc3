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

package controller

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/upgrade"
)

type recordingServer struct {
	handlers map[string]http.Handler
}

func (s *recordingServer) Register(path string, hook http.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]http.Handler{}
	}
	s.handlers[path] = hook
}

type fakePauser struct {
	duration time.Duration
}

func (p *fakePauser) PreUpgrade(d time.Duration) upgrade.Outcome {
	p.duration = d
	return upgrade.OutcomePaused
}

func (p *fakePauser) PostUpgrade() upgrade.Outcome { return upgrade.OutcomeNotNeeded }

type readiness bool

func (r readiness) Ready() bool { return bool(r) }

func Test_parseFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8443", opts.metricsAddr)
	assert.Equal(t, ":8081", opts.probeAddr)
	assert.Equal(t, 9443, opts.webhookPort)
	assert.True(t, opts.secureMetrics)
	assert.False(t, opts.enableHTTP2)
	assert.Nil(t, opts.zap.Encoder)

	opts, err = parseFlags([]string{"--webhook-port=10250", "--webhook-cert-path=/certs", "--log-format=json"})
	require.NoError(t, err)
	assert.Equal(t, 10250, opts.webhookPort)
	assert.Equal(t, "/certs", opts.webhookCertPath)
	assert.NotNil(t, opts.zap.Encoder)
}

func Test_parseFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown log format", args: []string{"--log-format=xml"}},
		{name: "unknown flag", args: []string{"--leader-elect"}},
		{name: "positional argument", args: []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseFlags(tt.args)
			require.Error(t, err)
		})
	}
}

func Test_tlsOptions(t *testing.T) {
	t.Parallel()

	assert.Empty(t, tlsOptions(true))

	opts := tlsOptions(false)
	require.Len(t, opts, 1)
	cfg := &tls.Config{NextProtos: []string{"h2", "http/1.1"}}
	opts[0](cfg)
	assert.Equal(t, []string{"http/1.1"}, cfg.NextProtos)
}

func Test_readyCheck(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	assert.Error(t, readyCheck(readiness(false))(req))
	assert.NoError(t, readyCheck(readiness(true))(req))
}

func Test_registerAdmission(t *testing.T) {
	t.Parallel()

	server := &recordingServer{}
	registerAdmission(server, logr.Discard(), admission.NewDecoder(scheme))

	assert.Len(t, server.handlers, 2)
	assert.Contains(t, server.handlers, constants.PathAdmissionFlinkJob)
	assert.Contains(t, server.handlers, constants.PathAdmissionFlinkSession)
}

func Test_registerUpgradeHooks(t *testing.T) {
	t.Parallel()

	server := &recordingServer{}
	pauser := &fakePauser{}
	registerUpgradeHooks(server, logr.Discard(), pauser, 90*time.Second)
	require.Len(t, server.handlers, 2)

	rec := httptest.NewRecorder()
	server.handlers[constants.PathPreUpgrade].ServeHTTP(rec,
		httptest.NewRequest(http.MethodPut, constants.PathPreUpgrade, strings.NewReader("")))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 90*time.Second, pauser.duration, "an empty body pauses for the configured default")

	rec = httptest.NewRecorder()
	server.handlers[constants.PathPostUpgrade].ServeHTTP(rec,
		httptest.NewRequest(http.MethodPut, constants.PathPostUpgrade, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
