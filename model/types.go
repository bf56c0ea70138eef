// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// SourceType identifies the coverage-data source a reference came from.
type SourceType string

const (
	SourceNCD     SourceType = "NCD"
	SourceLCD     SourceType = "LCD"
	SourceArticle SourceType = "Article"
	SourceCarelon SourceType = "Carelon"
	SourceEvolent SourceType = "Evolent"
)

// CoverageReference is one candidate policy document returned by a search.
// URL is always absolute.
type CoverageReference struct {
	Title         string     `json:"title"`
	DisplayID     string     `json:"displayId"`
	SourceType    SourceType `json:"sourceType"`
	URL           string     `json:"url"`
	EffectiveDate string     `json:"effectiveDate,omitempty"`
}

// String renders the reference as "Title (ID)".
func (r CoverageReference) String() string {
	if r.DisplayID == "" {
		return r.Title
	}
	return fmt.Sprintf("%s (%s)", r.Title, r.DisplayID)
}

// StateRef is a resolved U.S. state or territory.
type StateRef struct {
	StateID     int    `json:"stateId"`
	Description string `json:"description"`
}

// SearchQuery is the input of one policy search invocation.
// State is nil for sources that are not state-scoped.
type SearchQuery struct {
	Query string    `json:"query"`
	State *StateRef `json:"state,omitempty"`
}

// Normalized returns the query lowercased with whitespace collapsed.
func (q SearchQuery) Normalized() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Query)), " ")
}

// PriorAuth is the closed set of prior-authorization verdicts.
type PriorAuth string

const (
	PriorAuthYes         PriorAuth = "YES"
	PriorAuthNo          PriorAuth = "NO"
	PriorAuthConditional PriorAuth = "CONDITIONAL"
	PriorAuthUnknown     PriorAuth = "UNKNOWN"
)

// CodeContext says whether a billing code is covered by a policy.
type CodeContext string

const (
	CodeCovered     CodeContext = "covered"
	CodeExcluded    CodeContext = "excluded"
	CodeUnspecified CodeContext = "unspecified"
)

// PolicyCode is one ICD-10 or CPT code mentioned by a policy.
type PolicyCode struct {
	Code        string      `json:"code"`
	Description string      `json:"description"`
	Context     CodeContext `json:"context"`
}

// ExtractedPolicyDetails is the structured view of one policy document.
// Lists are never nil once produced by the extractor.
type ExtractedPolicyDetails struct {
	PriorAuthRequired        PriorAuth    `json:"priorAuthRequired"`
	MedicalNecessityCriteria []string     `json:"medicalNecessityCriteria"`
	ICD10Codes               []PolicyCode `json:"icd10Codes"`
	CPTCodes                 []PolicyCode `json:"cptCodes"`
	RequiredDocumentation    []string     `json:"requiredDocumentation"`
	LimitationsExclusions    []string     `json:"limitationsExclusions"`
	Summary                  string       `json:"summary"`
	SourceURL                string       `json:"sourceUrl,omitempty"`
}
