package controller

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"

	florkv1 "github.com/flork/flork-operator/api/v1"
	"github.com/flork/flork-operator/internal/config"
	"github.com/flork/flork-operator/internal/constants"
	"github.com/flork/flork-operator/internal/registry"
	"github.com/flork/flork-operator/internal/upgrade"
)

const (
	eventuallyTimeout = 20 * time.Second
	pollInterval      = 50 * time.Millisecond
)

func flinkJobObject(namespace, name string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion(florkv1.GroupVersion.String())
	u.SetKind(constants.KindFlinkJob)
	u.SetNamespace(namespace)
	u.SetName(name)
	u.SetGeneration(1)
	_ = unstructured.SetNestedField(u.Object, "org.example.WordCount", "spec", "jobClassName")
	_ = unstructured.SetNestedSlice(u.Object, []any{
		map[string]any{"name": constants.ContainerNameFlinkMain, "image": "flink:1.18"},
	}, "spec", "jobManagerPodSpec", "containers")
	return u
}

var _ = Describe("CRD controller", Ordered, func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		reg    *registry.Registry
		deps   Dependencies
		ctrl   *CRDController
	)

	BeforeAll(func() {
		ctx, cancel = context.WithCancel(context.Background())
		reg = registry.New(logr.Discard())
		deps = newTestDependencies(reg, &config.ControllerConfig{
			Mode:              config.ModeCRD,
			ManagedNamespaces: []string{"team-a", "team-b"},
			ResyncPeriod:      30 * time.Second,
		}, flinkJobObject("team-a", "wordcount"))

		c, err := New(ctx, deps)
		Expect(err).NotTo(HaveOccurred())
		ctrl = c.(*CRDController)
		Expect(ctrl.AwaitReady(ctx)).To(Succeed())
	})

	AfterAll(func() {
		ctrl.Shutdown()
		cancel()
		Expect(ctrl.Ready()).To(BeFalse())
		Expect(reg.Len()).To(BeZero())
	})

	It("watches every managed namespace and kind", func() {
		Expect(ctrl.Ready()).To(BeTrue())
		Expect(ctrl.WatchNames()).To(ConsistOf(
			"team-a/flinkjobs", "team-a/flinksessions",
			"team-b/flinkjobs", "team-b/flinksessions",
		))
		Expect(reg.Len()).To(Equal(2))
	})

	It("deploys an existing FlinkJob and records DEPLOYED", func() {
		By("waiting for the job manager Deployment")
		Eventually(func() error {
			return deps.Client.Get(ctx, types.NamespacedName{Namespace: "team-a", Name: "wordcount"}, &appsv1.Deployment{})
		}, eventuallyTimeout, pollInterval).Should(Succeed())

		By("waiting for the status subresource")
		Eventually(func(g Gomega) {
			obj, err := deps.Dynamic.Resource(florkv1.FlinkJobGVR).Namespace("team-a").Get(ctx, "wordcount", metav1.GetOptions{})
			g.Expect(err).NotTo(HaveOccurred())
			phase, _, _ := unstructured.NestedString(obj.Object, "status", "florkPhase")
			g.Expect(phase).To(Equal(string(florkv1.FlorkPhaseDeployed)))
		}, eventuallyTimeout, pollInterval).Should(Succeed())

		lease, err := deps.Kube.CoordinationV1().Leases("team-a").Get(ctx, "flork-lease-team-a-wordcount", metav1.GetOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(*lease.Spec.HolderIdentity).To(Equal("replica-1"))
	})

	It("tears the cluster down when the FlinkJob is deleted", func() {
		Expect(deps.Dynamic.Resource(florkv1.FlinkJobGVR).Namespace("team-a").Delete(ctx, "wordcount", metav1.DeleteOptions{})).To(Succeed())

		Eventually(func() bool {
			err := deps.Client.Get(ctx, types.NamespacedName{Namespace: "team-a", Name: "wordcount"}, &appsv1.Deployment{})
			return apierrors.IsNotFound(err)
		}, eventuallyTimeout, pollInterval).Should(BeTrue())
	})
})

var _ = Describe("CRD controller with all namespaces", func() {
	It("uses a single cluster-wide watch per kind", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reg := registry.New(logr.Discard())
		deps := newTestDependencies(reg, &config.ControllerConfig{
			Mode:              config.ModeCRD,
			ManagedNamespaces: []string{constants.AllNamespaces},
			ResyncPeriod:      30 * time.Second,
		})

		c, err := NewCRDController(ctx, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.WatchNames()).To(ConsistOf("*/flinkjobs", "*/flinksessions"))

		c.Shutdown()
		c.Shutdown()
		Expect(c.WatchNames()).To(BeEmpty())
		Expect(reg.Len()).To(BeZero())
	})
})

var _ = Describe("ConfigMap controller", Ordered, func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		reg    *registry.Registry
		deps   Dependencies
		kube   *fake.Clientset
		ctrl   *ConfigMapController
	)

	statusOf := func(job string) (*corev1.ConfigMap, error) {
		return kube.CoreV1().ConfigMaps("flork").Get(ctx, StatusConfigMapName(job), metav1.GetOptions{})
	}

	BeforeAll(func() {
		ctx, cancel = context.WithCancel(context.Background())
		reg = registry.New(logr.Discard())
		deps = newTestDependencies(reg, &config.ControllerConfig{
			Mode:         config.ModeConfigMap,
			PodNamespace: "flork",
			ResyncPeriod: 30 * time.Second,
		})
		kube = fake.NewSimpleClientset(jobConfigMap("wordcount", "", wordcountResource))
		deps.Kube = kube

		c, err := New(ctx, deps)
		Expect(err).NotTo(HaveOccurred())
		ctrl = c.(*ConfigMapController)
		Expect(ctrl.AwaitReady(ctx)).To(Succeed())
	})

	AfterAll(func() {
		ctrl.Shutdown()
		cancel()
		Expect(reg.Len()).To(BeZero())
	})

	It("watches the job and status ConfigMaps of its namespace", func() {
		Expect(ctrl.WatchNames()).To(ConsistOf("flork-flink-job-outer", "flork-flink-job-inner"))
		Expect(ctrl.Janitor()).NotTo(BeNil())
	})

	It("deploys a job ConfigMap and records its state in a status ConfigMap", func() {
		Eventually(func(g Gomega) {
			cm, err := statusOf("wordcount")
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(cm.Labels).To(HaveKeyWithValue(constants.LabelFlinkJobStatus, constants.LabelValueTrue))
			g.Expect(cm.Labels).To(HaveKeyWithValue(constants.LabelValidity, constants.LabelValueTrue))
			_, status, err := readStatus(cm)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(status.FlorkPhase).To(Equal(florkv1.FlorkPhaseDeployed))
		}, eventuallyTimeout, pollInterval).Should(Succeed())

		Expect(deps.Client.Get(ctx, types.NamespacedName{Namespace: "flork", Name: "wordcount"}, &appsv1.Deployment{})).To(Succeed())
	})

	It("records an exception for a job ConfigMap without a valid FlinkJob", func() {
		_, err := kube.CoreV1().ConfigMaps("flork").Create(ctx, jobConfigMap("broken", "", "spec: [unterminated"), metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func(g Gomega) {
			cm, err := statusOf("broken")
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(cm.Data).To(HaveKey(constants.KeyException))
			g.Expect(cm.Labels).To(HaveKeyWithValue(constants.LabelValidity, constants.LabelValueFalse))
		}, eventuallyTimeout, pollInterval).Should(Succeed())
	})

	It("deletes the status ConfigMap and the cluster with the job ConfigMap", func() {
		Expect(kube.CoreV1().ConfigMaps("flork").Delete(ctx, "wordcount", metav1.DeleteOptions{})).To(Succeed())

		Eventually(func() bool {
			_, err := statusOf("wordcount")
			return apierrors.IsNotFound(err)
		}, eventuallyTimeout, pollInterval).Should(BeTrue())
		Eventually(func() bool {
			err := deps.Client.Get(ctx, types.NamespacedName{Namespace: "flork", Name: "wordcount"}, &appsv1.Deployment{})
			return apierrors.IsNotFound(err)
		}, eventuallyTimeout, pollInterval).Should(BeTrue())
	})

	It("ignores job ConfigMaps while paused for an upgrade", func() {
		coordinator := ctrl.Coordinator()
		Expect(coordinator.PreUpgrade(time.Minute)).To(Equal(upgrade.OutcomePaused))
		Expect(coordinator.PreUpgrade(time.Second)).To(Equal(upgrade.OutcomeAlreadyPaused))

		_, err := kube.CoreV1().ConfigMaps("flork").Create(ctx, jobConfigMap("late", "", wordcountResource), metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		Consistently(func() bool {
			_, err := statusOf("late")
			return apierrors.IsNotFound(err)
		}, time.Second, pollInterval).Should(BeTrue())

		Expect(coordinator.PostUpgrade()).To(Equal(upgrade.OutcomePausedIndefinitely))
		Expect(coordinator.Paused()).To(BeTrue())
	})
})
