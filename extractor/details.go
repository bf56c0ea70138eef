package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	ijson "github.com/wramirez09/langchain-agent-sub000/internal/json"
	"github.com/wramirez09/langchain-agent-sub000/model"
)

// detailsSchemaJSON is the output schema sent to the engine.
const detailsSchemaJSON = `{
  "type": "object",
  "properties": {
    "priorAuthRequired": {"type": "string", "enum": ["YES", "NO", "CONDITIONAL", "UNKNOWN"]},
    "medicalNecessityCriteria": {"type": "array", "items": {"type": "string"}},
    "icd10Codes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "code": {"type": "string"},
          "description": {"type": "string"},
          "context": {"type": "string", "enum": ["covered", "excluded", "unspecified"]}
        },
        "required": ["code", "description", "context"],
        "additionalProperties": false
      }
    },
    "cptCodes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "code": {"type": "string"},
          "description": {"type": "string"},
          "context": {"type": "string", "enum": ["covered", "excluded", "unspecified"]}
        },
        "required": ["code", "description", "context"],
        "additionalProperties": false
      }
    },
    "requiredDocumentation": {"type": "array", "items": {"type": "string"}},
    "limitationsExclusions": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"}
  },
  "required": [
    "priorAuthRequired",
    "medicalNecessityCriteria",
    "icd10Codes",
    "cptCodes",
    "requiredDocumentation",
    "limitationsExclusions",
    "summary"
  ],
  "additionalProperties": false
}`

// responseShapeJSON is what an engine reply must satisfy before
// normalization. Enum values are left open and closed afterwards.
const responseShapeJSON = `{
  "type": "object",
  "properties": {
    "priorAuthRequired": {"type": ["string", "boolean", "null"]},
    "medicalNecessityCriteria": {"$ref": "#/$defs/strings"},
    "icd10Codes": {"$ref": "#/$defs/codes"},
    "cptCodes": {"$ref": "#/$defs/codes"},
    "requiredDocumentation": {"$ref": "#/$defs/strings"},
    "limitationsExclusions": {"$ref": "#/$defs/strings"},
    "summary": {"type": ["string", "null"]}
  },
  "$defs": {
    "strings": {"type": ["array", "null"], "items": {"type": ["string", "null"]}},
    "codes": {
      "type": ["array", "null"],
      "items": {
        "type": ["object", "string"],
        "properties": {
          "code": {"type": ["string", "null"]},
          "description": {"type": ["string", "null"]},
          "context": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var (
	shapeOnce   sync.Once
	shapeSchema *jsonschema.Schema
	shapeErr    error
)

func responseShape() (*jsonschema.Schema, error) {
	shapeOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("policy_details.json", strings.NewReader(responseShapeJSON)); err != nil {
			shapeErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		shapeSchema, shapeErr = compiler.Compile("policy_details.json")
		if shapeErr != nil {
			shapeErr = fmt.Errorf("compile policy details schema: %w", shapeErr)
		}
	})
	return shapeSchema, shapeErr
}

// DetailsSchema returns the JSON schema the engine is asked to follow.
func DetailsSchema() json.RawMessage {
	return json.RawMessage(detailsSchemaJSON)
}

type rawCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// UnmarshalJSON also accepts a bare code string.
func (c *rawCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Code = s
		return nil
	}
	type plain rawCode
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = rawCode(p)
	return nil
}

type rawDetails struct {
	PriorAuthRequired        interface{} `json:"priorAuthRequired"`
	MedicalNecessityCriteria []string    `json:"medicalNecessityCriteria"`
	ICD10Codes               []rawCode   `json:"icd10Codes"`
	CPTCodes                 []rawCode   `json:"cptCodes"`
	RequiredDocumentation    []string    `json:"requiredDocumentation"`
	LimitationsExclusions    []string    `json:"limitationsExclusions"`
	Summary                  string      `json:"summary"`
}

// ParseDetails turns an engine reply into normalized policy details.
// Replies that are not JSON or do not fit the expected shape are errors;
// a reply that fits is always closed over the enumerated vocabularies.
func ParseDetails(content string) (model.ExtractedPolicyDetails, error) {
	raw, err := ijson.ExtractJSON(content)
	if err != nil {
		return model.ExtractedPolicyDetails{}, err
	}

	schema, err := responseShape()
	if err != nil {
		return model.ExtractedPolicyDetails{}, err
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.ExtractedPolicyDetails{}, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return model.ExtractedPolicyDetails{}, fmt.Errorf("reply does not match schema: %w", err)
	}

	var r rawDetails
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return model.ExtractedPolicyDetails{}, fmt.Errorf("decode reply: %w", err)
	}
	return normalizeDetails(r), nil
}

func normalizeDetails(r rawDetails) model.ExtractedPolicyDetails {
	return model.ExtractedPolicyDetails{
		PriorAuthRequired:        NormalizePriorAuth(r.PriorAuthRequired),
		MedicalNecessityCriteria: cleanList(r.MedicalNecessityCriteria),
		ICD10Codes:               cleanCodes(r.ICD10Codes),
		CPTCodes:                 cleanCodes(r.CPTCodes),
		RequiredDocumentation:    cleanList(r.RequiredDocumentation),
		LimitationsExclusions:    cleanList(r.LimitationsExclusions),
		Summary:                  strings.TrimSpace(r.Summary),
	}
}

var priorAuthSynonyms = map[string]model.PriorAuth{
	"yes":                              model.PriorAuthYes,
	"y":                                model.PriorAuthYes,
	"true":                             model.PriorAuthYes,
	"required":                         model.PriorAuthYes,
	"prior authorization required":     model.PriorAuthYes,
	"requires prior authorization":     model.PriorAuthYes,
	"no":                               model.PriorAuthNo,
	"n":                                model.PriorAuthNo,
	"false":                            model.PriorAuthNo,
	"none":                             model.PriorAuthNo,
	"not required":                     model.PriorAuthNo,
	"prior authorization not required": model.PriorAuthNo,
	"conditional":                      model.PriorAuthConditional,
	"conditionally":                    model.PriorAuthConditional,
	"conditionally required":           model.PriorAuthConditional,
	"depends":                          model.PriorAuthConditional,
	"it depends":                       model.PriorAuthConditional,
	"sometimes":                        model.PriorAuthConditional,
	"in some cases":                    model.PriorAuthConditional,
	"unknown":                          model.PriorAuthUnknown,
}

// NormalizePriorAuth maps any reply value onto the four verdicts.
// Unrecognized values are UNKNOWN.
func NormalizePriorAuth(v interface{}) model.PriorAuth {
	switch t := v.(type) {
	case bool:
		if t {
			return model.PriorAuthYes
		}
		return model.PriorAuthNo
	case string:
		if p, ok := priorAuthSynonyms[vocabKey(t)]; ok {
			return p
		}
	}
	return model.PriorAuthUnknown
}

var codeContextSynonyms = map[string]model.CodeContext{
	"covered":      model.CodeCovered,
	"covered code": model.CodeCovered,
	"included":     model.CodeCovered,
	"supported":    model.CodeCovered,
	"payable":      model.CodeCovered,
	"allowed":      model.CodeCovered,
	"excluded":     model.CodeExcluded,
	"not covered":  model.CodeExcluded,
	"noncovered":   model.CodeExcluded,
	"non covered":  model.CodeExcluded,
	"not payable":  model.CodeExcluded,
	"denied":       model.CodeExcluded,
	"unspecified":  model.CodeUnspecified,
}

// NormalizeCodeContext maps a code context onto covered, excluded or
// unspecified.
func NormalizeCodeContext(s string) model.CodeContext {
	if c, ok := codeContextSynonyms[vocabKey(s)]; ok {
		return c
	}
	return model.CodeUnspecified
}

func vocabKey(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanCodes(in []rawCode) []model.PolicyCode {
	out := make([]model.PolicyCode, 0, len(in))
	for _, c := range in {
		code := strings.TrimSpace(c.Code)
		if code == "" {
			continue
		}
		out = append(out, model.PolicyCode{
			Code:        code,
			Description: strings.TrimSpace(c.Description),
			Context:     NormalizeCodeContext(c.Context),
		})
	}
	return out
}
