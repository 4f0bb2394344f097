package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

var podGVR = schema.GroupVersionResource{
	Group:    "",
	Version:  "v1",
	Resource: "pods",
}

// KubernetesLister reads instances from agent pods running in a namespace.
// Each pod must carry the LabelInstanceID label; pods without it are skipped.
type KubernetesLister struct {
	dynamic       dynamic.Interface
	namespace     string
	labelSelector string
	domainSuffix  string
}

// NewKubernetesLister creates a KubernetesLister.
func NewKubernetesLister(dyn dynamic.Interface, namespace, labelSelector, domainSuffix string) *KubernetesLister {
	return &KubernetesLister{
		dynamic:       dyn,
		namespace:     namespace,
		labelSelector: labelSelector,
		domainSuffix:  domainSuffix,
	}
}

// ListInstances lists agent pods matching the label selector.
func (k *KubernetesLister) ListInstances(ctx context.Context) ([]Instance, error) {
	return k.list(ctx, k.labelSelector)
}

// GetInstance returns the pod labelled with the given instance id.
func (k *KubernetesLister) GetInstance(ctx context.Context, id int64) (*Instance, error) {
	selector := LabelInstanceID + "=" + strconv.FormatInt(id, 10)
	if k.labelSelector != "" {
		selector = k.labelSelector + "," + selector
	}

	instances, err := k.list(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, ErrInstanceNotFound
	}
	return &instances[0], nil
}

// CreateInstance is not supported: pods are managed by their own controllers.
func (k *KubernetesLister) CreateInstance(_ context.Context, _ CreateParams) (*Instance, error) {
	return nil, ErrProvisioningUnsupported
}

func (k *KubernetesLister) list(ctx context.Context, selector string) ([]Instance, error) {
	list, err := k.dynamic.Resource(podGVR).Namespace(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", k.namespace, err)
	}

	instances := make([]Instance, 0, len(list.Items))
	for _, item := range list.Items {
		var pod corev1.Pod
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(item.Object, &pod); err != nil {
			return nil, fmt.Errorf("converting pod %s/%s: %w", k.namespace, item.GetName(), err)
		}

		id, err := strconv.ParseInt(pod.Labels[LabelInstanceID], 10, 64)
		if err != nil {
			slog.Debug("skipping pod without instance id", "pod", pod.Name, "namespace", k.namespace)
			continue
		}

		subdomain := pod.Labels[LabelSubdomain]
		instances = append(instances, Instance{
			ID:         id,
			Name:       pod.Name,
			Subdomain:  subdomain,
			Domain:     DomainFor(subdomain, pod.Name, k.domainSuffix),
			Status:     string(pod.Status.Phase),
			PublicIPv4: pod.Status.PodIP,
			CreatedAt:  pod.CreationTimestamp.Time,
		})
	}

	return instances, nil
}
