package detector

import "strings"

// Detection is one hardware component identified in a frame.
type Detection struct {
	Class      string  `json:"class"`
	Type       string  `json:"type"`
	Position   string  `json:"position"`
	Size       string  `json:"size"`
	Details    string  `json:"details"`
	Confidence float64 `json:"confidence"`
}

// Result is the full outcome of a detection pass.
type Result struct {
	Detections      []Detection
	AnnotatedImage  []byte
	ModelUsed       string
	TotalComponents int
}

type Component struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Position        string `json:"position"`
	Size            string `json:"size"`
	Details         string `json:"details"`
	UpgradeCategory string `json:"upgrade_category"`
}

type Recommendation struct {
	Component string   `json:"component"`
	Action    string   `json:"action"`
	Message   string   `json:"message"`
	NextSteps []string `json:"next_steps"`
}

type StructuredData struct {
	Summary         string           `json:"summary"`
	Components      []Component      `json:"components"`
	Recommendations []Recommendation `json:"recommendations"`
	TotalCount      int              `json:"total_count"`
}

// QuotaError marks upstream rate or quota exhaustion.
type QuotaError struct {
	Detail string
}

func (e *QuotaError) Error() string { return e.Detail }

// IsQuotaError reports whether an error message indicates quota exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*QuotaError); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}
