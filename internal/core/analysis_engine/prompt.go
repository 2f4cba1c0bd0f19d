package analysis_engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxLeaseChars bounds the lease excerpt sent to the model and stored with the scan.
const MaxLeaseChars = 30000

// RetrievalQuery is the fixed similarity query for a jurisdiction.
func RetrievalQuery(cityName string) string {
	return "illegal clauses in tenancy agreements " + cityName
}

// BuildPrompt assembles the single generation prompt.
func BuildPrompt(cityName, context, leaseText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s Tenancy Lawyer. Analyze this lease against the provided Context laws for %s.\n\n", cityName, cityName)
	b.WriteString("Context Laws:\n")
	b.WriteString(context)
	b.WriteString("\n\nLease Text (Excerpt):\n")
	b.WriteString(TruncateChars(leaseText, MaxLeaseChars))
	b.WriteString(`

Instructions:
1. Highlight "Red Flags" (illegal or unfair clauses).
2. Suggest Advice.
3. Calculate a Risk Score (0-100, where 100 is extremely risky).

Output JSON ONLY with this structure:
{
  "riskScore": number,
  "issues": [
    { "title": string, "severity": "high" | "medium" | "low", "lawViolated": string, "description": string }
  ]
}
`)
	return b.String()
}

// TruncateChars returns at most n characters of s.
func TruncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
