package kube

import (
	"errors"
	"fmt"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// ProtectedNamespaceError rejects a mutation targeting a protected
// namespace. Protection is not overridable at runtime.
type ProtectedNamespaceError struct {
	Namespace string
}

func (e *ProtectedNamespaceError) Error() string {
	return fmt.Sprintf("namespace %q is protected, mutation refused", e.Namespace)
}

// ApprovalRequiredError means the action was queued for a human
// decision instead of executed.
type ApprovalRequiredError struct {
	ApprovalID string
	Action     string
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("action %q requires approval (id %s)", e.Action, e.ApprovalID)
}

// RateLimitedError rejects an action because the sliding-hour budget is
// exhausted.
type RateLimitedError struct {
	Status models.RateLimitStatus
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit reached: %d/%d actions in the last hour",
		e.Status.Used, e.Status.Limit)
}

// IsPolicyRefusal reports whether err is a gateway policy rejection
// rather than an execution failure.
func IsPolicyRefusal(err error) bool {
	var pe *ProtectedNamespaceError
	var ae *ApprovalRequiredError
	var re *RateLimitedError
	return errors.As(err, &pe) || errors.As(err, &ae) || errors.As(err, &re)
}
