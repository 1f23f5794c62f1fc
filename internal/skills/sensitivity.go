// SPDX-License-Identifier: AGPL-3.0-or-later

package skills

import (
	"context"
	"errors"
	"regexp"

	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/runner"
	"github.com/bartekus/skillkit/internal/tier"
)

// PIIPattern is one named personal-data detector.
type PIIPattern struct {
	Type  string
	Regex *regexp.Regexp
}

// PIIPatterns are evaluated in order; every match is counted.
var PIIPatterns = []PIIPattern{
	{Type: "email", Regex: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{Type: "ipv4", Regex: regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
	{Type: "phone_jp", Regex: regexp.MustCompile(`\b0\d{1,4}-\d{1,4}-\d{3,4}\b`)},
	{Type: "credit_card", Regex: regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
}

// Sensitivity is the sensitivity-detector result.
type Sensitivity struct {
	File     string         `json:"file"`
	Tier     tier.Tier      `json:"tier"`
	HasPII   bool           `json:"hasPII"`
	Findings map[string]int `json:"findings"`
	Markers  marker.Result  `json:"markers"`
}

// ScanPII counts matches per PII type. Types without matches are omitted.
func ScanPII(content string) (bool, map[string]int) {
	findings := map[string]int{}
	for _, p := range PIIPatterns {
		if n := len(p.Regex.FindAllStringIndex(content, -1)); n > 0 {
			findings[p.Type] = n
		}
	}
	return len(findings) > 0, findings
}

func detectSensitivity(_ context.Context, inv *runner.Invocation) (any, error) {
	if inv.Guard == nil {
		return nil, errors.New("sensitivity-detector requires a knowledge root")
	}
	path := inv.Args.String("input")
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}

	content := string(raw)
	hasPII, findings := ScanPII(content)
	return Sensitivity{
		File:     path,
		Tier:     inv.Guard.DetectTier(path),
		HasPII:   hasPII,
		Findings: findings,
		Markers:  inv.Markers.Scan(content),
	}, nil
}
