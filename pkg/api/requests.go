package api

// InvestigateRequest is the body for POST /api/v1/investigate.
type InvestigateRequest struct {
	Description string `json:"description"`
	ThreadID    string `json:"thread_id,omitempty"`
}

// ConfigPatchRequest is the body for PATCH /api/v1/config: a map of
// runtime option names to their new values.
type ConfigPatchRequest map[string]any

// ConfigResetRequest is the body for POST /api/v1/config/reset. An
// empty key resets every override.
type ConfigResetRequest struct {
	Key string `json:"key,omitempty"`
}

// alertmanagerWebhook is the Alertmanager v4 webhook payload. Fields
// the correlator does not consume are accepted and ignored.
type alertmanagerWebhook struct {
	Status       string              `json:"status"`
	GroupLabels  map[string]string   `json:"groupLabels"`
	CommonLabels map[string]string   `json:"commonLabels"`
	Alerts       []alertmanagerAlert `json:"alerts"`
}

type alertmanagerAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}
