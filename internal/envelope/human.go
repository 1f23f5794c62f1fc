// SPDX-License-Identifier: AGPL-3.0-or-later

package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// HumanRenderer renders an envelope as readable text carrying the same
// content as the JSON form.
type HumanRenderer struct {
	ok, bad, warn, bold, dim, errHead, hint *color.Color
}

// NewHumanRenderer returns a renderer; colour escapes are emitted only when
// enabled is true.
func NewHumanRenderer(enabled bool) *HumanRenderer {
	r := &HumanRenderer{
		ok:      color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
		errHead: color.New(color.FgRed, color.Bold),
		hint:    color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{r.ok, r.bad, r.warn, r.bold, r.dim, r.errHead, r.hint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Render returns the full text block for env.
func (r *HumanRenderer) Render(env Envelope) string {
	var b strings.Builder

	icon := r.ok.Sprint("✅")
	switch env.Status {
	case StatusError:
		icon = r.bad.Sprint("❌")
	case StatusPartial:
		icon = r.warn.Sprint("⚠️")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s %s", icon, r.bold.Sprint(env.Skill), env.Status))
	if env.Metadata != nil {
		b.WriteString(" " + r.dim.Sprintf("in %dms", env.Metadata.DurationMS))
	}
	b.WriteString("\n\n")

	if env.Data != nil {
		b.WriteString(renderData(env.Data))
		b.WriteString("\n")
	}

	if e := env.Error; e != nil {
		if env.Data != nil {
			b.WriteString("\n")
		}
		b.WriteString(r.errHead.Sprintf("Error [%s]: ", e.Code) + e.Message + "\n")
		if e.Details != nil {
			b.WriteString(r.dim.Sprint("Details: ") + renderData(e.Details) + "\n")
		}
		if e.Suggestion != "" {
			b.WriteString("\n" + r.hint.Sprint("Next Steps:") + "\n")
			b.WriteString("  " + r.hint.Sprint(e.Suggestion) + "\n")
		}
		retry := "No"
		if e.Retryable {
			retry = "Yes"
		}
		b.WriteString("\n" + r.dim.Sprintf("Retryable: %s", retry) + "\n")
	}

	return b.String()
}

func renderData(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
