package taxonomy

// Metadata describes the taxonomy standard file.
type Metadata struct {
	Version     string `json:"version"`
	LastUpdated string `json:"last_updated"`
	Description string `json:"description"`
	Maintainer  string `json:"maintainer"`
}

// Entry is one pest or disease classification.
type Entry struct {
	ID               int      `json:"id"`
	ModelLabel       string   `json:"model_label"`
	ZhScientificName string   `json:"zh_scientific_name"`
	LatinName        string   `json:"latin_name"`
	Category         string   `json:"category"`      // Pest, Disease, Status, Anomaly
	ActionPolicy     string   `json:"action_policy"` // PASS, RETRIEVE, HUMAN_REVIEW
	SearchKeywords   []string `json:"search_keywords,omitempty"`
	Description      string   `json:"description,omitempty"`
	RiskLevel        string   `json:"risk_level,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// Standard is the full taxonomy document.
type Standard struct {
	Metadata Metadata `json:"metadata"`
	Taxonomy []Entry  `json:"taxonomy"`
}

// Action policies.
const (
	PolicyPass        = "PASS"
	PolicyRetrieve    = "RETRIEVE"
	PolicyHumanReview = "HUMAN_REVIEW"
)

// Categories.
const (
	CategoryPest    = "Pest"
	CategoryDisease = "Disease"
	CategoryStatus  = "Status"
	CategoryAnomaly = "Anomaly"
)
