// SPDX-License-Identifier: AGPL-3.0-or-later

// Package skillerr defines the coded error taxonomy every skill reports through
// and the classifier that folds arbitrary failures into it.
//
// Codes are namespaced by their leading digit:
//
//	1xx resolution, 2xx validation, 3xx execution, 4xx pipeline, 5xx tier/security
//
// Downstream tooling branches on that prefix, so a code is never reused for a
// different meaning.
package skillerr

import (
	"fmt"
	"sort"
)

// Definition is one catalog entry.
type Definition struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Resolution (1xx).
var (
	SkillNotFound = Definition{
		Name:    "SKILL_NOT_FOUND",
		Code:    "E100",
		Message: "Skill not found in index",
	}
	ScriptNotFound = Definition{
		Name:    "SCRIPT_NOT_FOUND",
		Code:    "E101",
		Message: "No executable script found for skill",
	}
	AmbiguousScript = Definition{
		Name:    "AMBIGUOUS_SCRIPT",
		Code:    "E102",
		Message: "Multiple scripts found without explicit main field",
	}
)

// Validation (2xx).
var (
	ValidationError = Definition{
		Name:    "VALIDATION_ERROR",
		Code:    "E200",
		Message: "Input validation failed",
	}
	MissingArgument = Definition{
		Name:    "MISSING_ARGUMENT",
		Code:    "E201",
		Message: "Required argument is missing",
	}
	InvalidFilePath = Definition{
		Name:    "INVALID_FILE_PATH",
		Code:    "E202",
		Message: "File path is invalid or file does not exist",
	}
	SchemaMismatch = Definition{
		Name:    "SCHEMA_MISMATCH",
		Code:    "E203",
		Message: "Input does not match expected JSON Schema",
	}
)

// Execution (3xx).
var (
	ExecutionError = Definition{
		Name:    "EXECUTION_ERROR",
		Code:    "E300",
		Message: "Skill execution failed",
	}
	Timeout = Definition{
		Name:      "TIMEOUT",
		Code:      "E301",
		Message:   "Skill execution timed out",
		Retryable: true,
	}
	DependencyError = Definition{
		Name:      "DEPENDENCY_ERROR",
		Code:      "E302",
		Message:   "External dependency (CLI tool, API) unavailable",
		Retryable: true,
	}
	ParseError = Definition{
		Name:    "PARSE_ERROR",
		Code:    "E303",
		Message: "Failed to parse skill output",
	}
)

// Pipeline (4xx). Raised by orchestrators, never by the wrapper itself.
var (
	PipelineStepFailed = Definition{
		Name:    "PIPELINE_STEP_FAILED",
		Code:    "E400",
		Message: "A step in the pipeline failed",
	}
	PipelineAborted = Definition{
		Name:    "PIPELINE_ABORTED",
		Code:    "E401",
		Message: "Pipeline was aborted due to a non-recoverable step failure",
	}
	InvalidPipeline = Definition{
		Name:    "INVALID_PIPELINE",
		Code:    "E402",
		Message: "Pipeline YAML is malformed or missing required fields",
	}
)

// Tier / security (5xx). Never retryable.
var (
	TierViolation = Definition{
		Name:    "TIER_VIOLATION",
		Code:    "E500",
		Message: "Knowledge tier data flow violation detected",
	}
	WriteDenied = Definition{
		Name:    "WRITE_DENIED",
		Code:    "E501",
		Message: "Write operation denied by role-based access control",
	}
	ReadDenied = Definition{
		Name:    "READ_DENIED",
		Code:    "E502",
		Message: "Read operation denied - path is outside sandbox",
	}
	SovereignLeak = Definition{
		Name:    "SOVEREIGN_LEAK",
		Code:    "E503",
		Message: "Potential sovereign secret leak detected in output",
	}
)

// Family names, keyed by the leading digit of a code.
const (
	FamilyResolution = "resolution"
	FamilyValidation = "validation"
	FamilyExecution  = "execution"
	FamilyPipeline   = "pipeline"
	FamilySecurity   = "security"
)

var families = map[byte]string{
	'1': FamilyResolution,
	'2': FamilyValidation,
	'3': FamilyExecution,
	'4': FamilyPipeline,
	'5': FamilySecurity,
}

// Family returns the family of a code such as "E302", or "" if the code is
// not of the form E<digit>xx.
func Family(code string) string {
	if len(code) != 4 || code[0] != 'E' {
		return ""
	}
	return families[code[1]]
}

// Catalog is an immutable, ordered set of definitions.
type Catalog struct {
	byName map[string]Definition
	byCode map[string]Definition
	all    []Definition
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(
		SkillNotFound, ScriptNotFound, AmbiguousScript,
		ValidationError, MissingArgument, InvalidFilePath, SchemaMismatch,
		ExecutionError, Timeout, DependencyError, ParseError,
		PipelineStepFailed, PipelineAborted, InvalidPipeline,
		TierViolation, WriteDenied, ReadDenied, SovereignLeak,
	)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return c
}

// NewCatalog builds a catalog, rejecting duplicate names or codes and codes
// outside the known families.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]Definition, len(defs)),
		byCode: make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" || d.Code == "" {
			return nil, fmt.Errorf("catalog entry %+v: name and code are required", d)
		}
		if Family(d.Code) == "" {
			return nil, fmt.Errorf("catalog entry %s: code %q is outside the E1xx-E5xx families", d.Name, d.Code)
		}
		if prev, ok := c.byName[d.Name]; ok {
			return nil, fmt.Errorf("catalog entry %s: duplicate name (already %s)", d.Name, prev.Code)
		}
		if prev, ok := c.byCode[d.Code]; ok {
			return nil, fmt.Errorf("catalog entry %s: code %s already used by %s", d.Name, d.Code, prev.Name)
		}
		c.byName[d.Name] = d
		c.byCode[d.Code] = d
		c.all = append(c.all, d)
	}
	sort.Slice(c.all, func(i, j int) bool { return c.all[i].Code < c.all[j].Code })
	return c, nil
}

// Lookup returns the definition registered under a symbolic name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// ByCode returns the definition for a code such as "E500".
func (c *Catalog) ByCode(code string) (Definition, bool) {
	d, ok := c.byCode[code]
	return d, ok
}

// All returns every definition ordered by code.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.all))
	copy(out, c.all)
	return out
}
