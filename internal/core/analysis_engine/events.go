package analysis_engine

import (
	"encoding/json"

	"github.com/markdave123-py/leaselens/internal/models"
)

// Event is one record of the analysis progress stream. The set of
// implementations is closed: StatusEvent, ResultEvent and ErrorEvent.
type Event interface {
	// Terminal reports whether the stream ends after this record.
	Terminal() bool
	isEvent()
}

// StatusEvent reports entry into a pipeline state.
type StatusEvent struct {
	Step    int
	Message string
}

// ResultEvent carries the finished analysis.
type ResultEvent struct {
	Data Result
}

// ErrorEvent carries the user-facing failure message.
type ErrorEvent struct {
	Message string
}

// Result is the payload of a successful analysis.
type Result struct {
	ScanID    string         `json:"scanId"`
	RiskScore int            `json:"riskScore"`
	Issues    []models.Issue `json:"issues"`
}

func (StatusEvent) isEvent() {}
func (ResultEvent) isEvent() {}
func (ErrorEvent) isEvent()  {}

func (StatusEvent) Terminal() bool { return false }
func (ResultEvent) Terminal() bool { return true }
func (ErrorEvent) Terminal() bool  { return true }

func (e StatusEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Step    int    `json:"step"`
		Message string `json:"message"`
	}{"status", e.Step, e.Message})
}

func (e ResultEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data Result `json:"data"`
	}{"result", e.Data})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", e.Message})
}
