// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"fmt"
	"io"
	"strings"
)

// Usage writes help text generated from m's arguments.
func (m *Manifest) Usage(w io.Writer, program string) error {
	var b strings.Builder

	if m.Description != "" {
		fmt.Fprintf(&b, "\n%s -- %s\n\n", m.Name, m.Description)
	} else {
		fmt.Fprintf(&b, "\n%s\n\n", m.Name)
	}

	b.WriteString("Usage:\n")
	fmt.Fprintf(&b, "  %s%s\n\n", program, m.synopsis())

	if len(m.Arguments) > 0 {
		b.WriteString("Arguments:\n")
		for _, a := range m.Arguments {
			b.WriteString(argLine(a))
		}
		b.WriteString("\n")
	} else if m.loose {
		b.WriteString("No SKILL.md found; arguments are passed through to the skill.\n\n")
	}

	b.WriteString("Options:\n")
	b.WriteString(line("  --format", "Output format {json, human} [default: json]"))
	b.WriteString(line("  --help, -h", "Show this help"))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (m *Manifest) synopsis() string {
	var parts []string
	for _, a := range m.Arguments {
		if !a.Positional {
			continue
		}
		p := "<" + a.Name + ">"
		if a.kind() == TypeArray {
			p += "..."
		}
		if !a.Required {
			p = "[" + p + "]"
		}
		parts = append(parts, p)
	}
	s := " [options]"
	if len(parts) > 0 {
		s += " " + strings.Join(parts, " ")
	}
	return s
}

func argLine(a Argument) string {
	var name string
	if a.Positional {
		name = "  <" + a.Name + ">"
	} else {
		name = "  --" + a.Name
		if a.Short != "" {
			name += ", -" + a.Short
		}
	}

	desc := a.Description
	if len(a.Choices) > 0 {
		desc += " {" + strings.Join(a.Choices, ", ") + "}"
	}
	if a.Required {
		desc += " (required)"
	}
	if a.Default != nil {
		desc += fmt.Sprintf(" [default: %v]", a.Default)
	}
	return line(name, desc)
}

func line(name, desc string) string {
	return fmt.Sprintf("%-24s %s\n", name, strings.TrimSpace(desc))
}
