package models

import (
	"time"
)

// User is the account record behind an authenticated caller.
// Identity is issued upstream; this row only holds credits and preferences.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Credits   int       `db:"credits" json:"credits"`
	City      string    `db:"city" json:"city"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Severity grades a flagged clause.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Issue is one flagged lease clause. It only exists inside a Scan.
type Issue struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	LawViolated string   `json:"lawViolated,omitempty"`
	Description string   `json:"description"`
}

// Scan is the immutable result of one analysis run.
type Scan struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	FileName      string    `db:"file_name" json:"fileName"`
	ExtractedText string    `db:"extracted_text" json:"extractedText"`
	PageCount     int       `db:"page_count" json:"pageCount"`
	RiskScore     int       `db:"risk_score" json:"riskScore"`
	Issues        []Issue   `db:"issues" json:"issues"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ScanSummary is the history-list projection of a Scan (no extracted text).
type ScanSummary struct {
	ID        string    `db:"id" json:"id"`
	FileName  string    `db:"file_name" json:"fileName"`
	RiskScore int       `db:"risk_score" json:"riskScore"`
	PageCount int       `db:"page_count" json:"pageCount"`
	Issues    []Issue   `db:"issues" json:"issues"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Analysis is the structured report parsed out of the model response.
type Analysis struct {
	RiskScore int     `json:"riskScore"`
	Issues    []Issue `json:"issues"`
}

// ExtractedDocument is the output of a document extractor.
type ExtractedDocument struct {
	Text      string
	PageCount int
}

// Chunk is a bounded slice of normalized document text.
//
// ID:             deterministic, derived from SourceDocument + SequenceIndex.
// SequenceIndex:  zero-based position of the chunk inside the document.
type Chunk struct {
	ID             string
	Text           string
	SourceDocument string
	SequenceIndex  int
}

// PassageMetadata is the fixed metadata record stored with every vector entry.
type PassageMetadata struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	City   string `json:"city"`
}

// VectorEntry is the durable unit stored in the vector index.
// ID is unique per namespace; re-upserting the same ID overwrites.
type VectorEntry struct {
	ID       string
	Values   []float32
	Metadata PassageMetadata
}

// Match is one similarity-search hit. Higher Score means more similar.
type Match struct {
	ID       string
	Metadata PassageMetadata
	Score    float32
}
