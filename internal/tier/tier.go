// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tier classifies knowledge files into sensitivity tiers and decides
// whether content may flow from one tier into another tier's output.
//
// Weights are fixed: public=1 < confidential=2 < personal=3. Content may only
// be injected into an output whose weight is at least the source's weight.
package tier

import (
	"fmt"
	"strings"
)

// Tier is a knowledge sensitivity classification.
type Tier string

const (
	Public       Tier = "public"
	Confidential Tier = "confidential"
	Personal     Tier = "personal"
)

var weights = map[Tier]int{
	Public:       1,
	Confidential: 2,
	Personal:     3,
}

// All returns the tiers in ascending weight.
func All() []Tier {
	return []Tier{Public, Confidential, Personal}
}

// Weight returns the tier's sensitivity weight, or 0 for an unknown tier.
func (t Tier) Weight() int { return weights[t] }

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool { return weights[t] > 0 }

func (t Tier) String() string { return string(t) }

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (want public, confidential or personal)", s)
	}
	return t, nil
}

// CanFlowTo reports whether data from source may appear in a target-tier
// output: source weight <= target weight.
//
// An unknown tier on either side is refused.
func CanFlowTo(source, target Tier) bool {
	if !source.Valid() || !target.Valid() {
		return false
	}
	return source.Weight() <= target.Weight()
}
