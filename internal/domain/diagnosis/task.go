// Package diagnosis defines the asynchronous diagnosis job and the worker
// pipeline that executes it: download, classify, taxonomy lookup, knowledge
// retrieval, and report generation.
package diagnosis

import "time"

// Task states mirror the queue's result vocabulary.
const (
	StatePending = "PENDING"
	StateStarted = "STARTED"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
)

// Task is one submitted diagnosis job.
type Task struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	CropType  string    `json:"crop_type,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the completed diagnosis payload returned to API clients.
type Result struct {
	ModelLabel      string  `json:"model_label"`
	Confidence      float64 `json:"confidence"`
	InferenceTimeMs int64   `json:"inference_time_ms"`

	DiagnosisName string `json:"diagnosis_name"`
	LatinName     string `json:"latin_name"`
	Category      string `json:"category"`
	ActionPolicy  string `json:"action_policy"`
	TaxonomyID    *int   `json:"taxonomy_id"`
	Description   string `json:"description,omitempty"`
	RiskLevel     string `json:"risk_level,omitempty"`

	Report string `json:"report,omitempty"`

	CropType string `json:"crop_type,omitempty"`
	Location string `json:"location,omitempty"`
}
