// Package kube wraps the Kubernetes API: read operations for the
// monitor and agent tools, and the Gateway through which every cluster
// mutation must pass.
package kube

import (
	"fmt"
	"log/slog"
	"os"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client bundles the typed and dynamic Kubernetes clients.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// NewClient builds a client from the kubeconfig at path, falling back
// to in-cluster config when path is empty or unreadable.
func NewClient(kubeconfigPath string) (*Client, error) {
	cfg, err := buildRestConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}
	return &Client{clientset: clientset, dynamic: dyn}, nil
}

// NewWithClientset wraps existing clients. Used by tests with fakes.
func NewWithClientset(clientset kubernetes.Interface, dyn dynamic.Interface) *Client {
	return &Client{clientset: clientset, dynamic: dyn}
}

// Clientset exposes the typed client.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic exposes the dynamic client for CRD access.
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamic
}

func buildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		if _, err := os.Stat(kubeconfigPath); err == nil {
			cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
			if err != nil {
				return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfigPath, err)
			}
			slog.Info("Using kubeconfig", "path", kubeconfigPath)
			return cfg, nil
		}
		slog.Warn("Kubeconfig not readable, trying in-cluster config", "path", kubeconfigPath)
	}
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("no usable Kubernetes configuration: %w", err)
	}
	slog.Info("Using in-cluster Kubernetes configuration")
	return cfg, nil
}
