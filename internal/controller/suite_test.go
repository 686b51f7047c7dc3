package controller

import (
	"fmt"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/registry"
)

// TestControllerVariants runs both controller variants against fake API clients.
func TestControllerVariants(t *testing.T) {
	RegisterFailHandler(Fail)
	_, _ = fmt.Fprintf(GinkgoWriter, "Starting flork controller variant suite\n")
	RunSpecs(t, "controller variant suite")
}

// newTestDependencies wires fake clients around cfg. Dynamic objects seed the
// FlinkJob and FlinkSession store.
func newTestDependencies(reg *registry.Registry, cfg *config.ControllerConfig, dynamicObjects ...runtime.Object) Dependencies {
	if cfg.Identity == "" {
		cfg.Identity = "replica-1"
	}
	if cfg.ReconcilerWorkers == 0 {
		cfg.ReconcilerWorkers = 1
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		panic(err)
	}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), map[schema.GroupVersionResource]string{
		florkv1.FlinkJobGVR:     "FlinkJobList",
		florkv1.FlinkSessionGVR: "FlinkSessionList",
	}, dynamicObjects...)

	return Dependencies{
		Log:      logr.Discard(),
		Config:   cfg,
		Kube:     fake.NewSimpleClientset(),
		Dynamic:  dyn,
		Client:   crfake.NewClientBuilder().WithScheme(scheme).Build(),
		Registry: reg,
	}
}
