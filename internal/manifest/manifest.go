// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manifest reads a skill's SKILL.md frontmatter and turns its declared
// arguments into a command-line shape.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/bartekus/skillkit/internal/skillerr"
)

// FileName is the manifest file inside a skill directory.
const FileName = "SKILL.md"

// Argument types accepted in frontmatter.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeArray   = "array"
)

// Argument is one declared CLI argument.
type Argument struct {
	Name        string   `yaml:"name"`
	Short       string   `yaml:"short,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Required    bool     `yaml:"required,omitempty"`
	Default     any      `yaml:"default,omitempty"`
	Choices     []string `yaml:"choices,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Positional  bool     `yaml:"positional,omitempty"`
}

// Manifest is the parsed SKILL.md frontmatter plus its body.
type Manifest struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Status      string     `yaml:"status,omitempty"`
	Category    string     `yaml:"category,omitempty"`
	Tier        string     `yaml:"tier,omitempty"`
	Arguments   []Argument `yaml:"arguments,omitempty"`

	Body string `yaml:"-"`

	// loose manifests accept any arguments; used when a skill ships none.
	loose bool
}

// Fallback returns a manifest for a skill without SKILL.md. It accepts any
// arguments and only recognises --help and --format.
func Fallback(name string) *Manifest {
	return &Manifest{Name: name, loose: true}
}

// Loose reports whether m is a fallback manifest.
func (m *Manifest) Loose() bool { return m.loose }

var delim = []byte("---")

// Parse parses SKILL.md content. The file must open with a YAML frontmatter
// block delimited by --- lines.
func Parse(data []byte) (*Manifest, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, append(append([]byte{}, delim...), '\n')) {
		return nil, fmt.Errorf("%s must start with YAML frontmatter (---)", FileName)
	}
	rest := data[len(delim)+1:]

	var front, body []byte
	switch {
	case bytes.HasPrefix(rest, append(append([]byte{}, delim...), '\n')) || bytes.Equal(rest, delim):
		body = bytes.TrimPrefix(rest, delim)
	default:
		end := bytes.Index(rest, append([]byte{'\n'}, delim...))
		if end < 0 {
			return nil, fmt.Errorf("invalid frontmatter: closing --- not found")
		}
		front = rest[:end]
		body = rest[end+1+len(delim):]
	}

	var m Manifest
	if err := yaml.Unmarshal(front, &m); err != nil {
		return nil, fmt.Errorf("parsing frontmatter YAML: %w", err)
	}
	m.Body = string(bytes.TrimSpace(body))

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads <name>/SKILL.md from fsys. A missing file is reported as
// SKILL_NOT_FOUND.
func Load(fsys fs.FS, name string) (*Manifest, error) {
	p := path.Join(name, FileName)
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, skillerr.New(skillerr.SkillNotFound, name, skillerr.WithCause(err))
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}

var reserved = map[string]bool{"help": true, "format": true}

// Validate checks argument declarations for clashes with the built-in flags
// and with each other.
func (m *Manifest) Validate() error {
	names := map[string]bool{}
	shorts := map[string]bool{"h": true}
	sawVariadic := false

	for _, a := range m.Arguments {
		if a.Name == "" {
			return fmt.Errorf("argument without name")
		}
		if reserved[a.Name] {
			return fmt.Errorf("argument %q is reserved", a.Name)
		}
		if names[a.Name] {
			return fmt.Errorf("argument %q declared twice", a.Name)
		}
		names[a.Name] = true

		switch a.kind() {
		case TypeString, TypeBoolean, TypeNumber, TypeInteger, TypeArray:
		default:
			return fmt.Errorf("argument %q: unknown type %q", a.Name, a.Type)
		}

		if a.Positional {
			if sawVariadic {
				return fmt.Errorf("argument %q follows a variadic positional argument", a.Name)
			}
			if a.kind() == TypeArray {
				sawVariadic = true
			}
			continue
		}
		if a.Short != "" {
			if len(a.Short) != 1 {
				return fmt.Errorf("argument %q: short flag %q must be one character", a.Name, a.Short)
			}
			if shorts[a.Short] {
				return fmt.Errorf("argument %q: short flag -%s already in use", a.Name, a.Short)
			}
			shorts[a.Short] = true
		}
	}
	return nil
}

func (a Argument) kind() string {
	if a.Type == "" {
		return TypeString
	}
	return a.Type
}
