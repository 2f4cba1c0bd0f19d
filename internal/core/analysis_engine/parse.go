package analysis_engine

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

var codeFence = regexp.MustCompile("```json|```")

type rawAnalysis struct {
	RiskScore *float64 `json:"riskScore"`
	Issues    []struct {
		Title       string `json:"title"`
		Severity    string `json:"severity"`
		LawViolated string `json:"lawViolated"`
		Description string `json:"description"`
	} `json:"issues"`
}

// ParseAnalysis decodes the model output. Code fences are stripped; anything
// else that is not the requested shape is a core.ErrParse.
func ParseAnalysis(raw string) (*models.Analysis, error) {
	clean := strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	if clean == "" {
		return nil, fmt.Errorf("%w: empty model response", core.ErrParse)
	}

	var ra rawAnalysis
	if err := json.Unmarshal([]byte(clean), &ra); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if ra.RiskScore == nil {
		return nil, fmt.Errorf("%w: riskScore missing", core.ErrParse)
	}
	score := *ra.RiskScore
	if math.IsNaN(score) || score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: riskScore %v out of range 0-100", core.ErrParse, score)
	}

	out := &models.Analysis{
		RiskScore: int(math.Round(score)),
		Issues:    make([]models.Issue, 0, len(ra.Issues)),
	}
	for i, is := range ra.Issues {
		sev := models.Severity(strings.ToLower(strings.TrimSpace(is.Severity)))
		if !sev.Valid() {
			return nil, fmt.Errorf("%w: issue %d has unknown severity %q", core.ErrParse, i, is.Severity)
		}
		out.Issues = append(out.Issues, models.Issue{
			Title:       is.Title,
			Severity:    sev,
			LawViolated: is.LawViolated,
			Description: is.Description,
		})
	}
	return out, nil
}
