// SPDX-License-Identifier: AGPL-3.0-or-later

package manifest

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bartekus/skillkit/internal/skillerr"
)

// Args holds parsed argument values.
type Args struct {
	Help   bool
	Format string

	values     map[string]any
	set        map[string]bool
	positional []string
}

// NewArgs builds Args directly, for callers that invoke skills without a
// command line.
func NewArgs(values map[string]any) *Args {
	a := &Args{values: map[string]any{}, set: map[string]bool{}}
	for k, v := range values {
		a.values[k] = v
		a.set[k] = true
	}
	return a
}

// Has reports whether name was given explicitly.
func (a *Args) Has(name string) bool { return a.set[name] }

// Value returns the raw value of name.
func (a *Args) Value(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

func (a *Args) String(name string) string {
	switch v := a.values[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a *Args) Bool(name string) bool {
	v, _ := a.values[name].(bool)
	return v
}

func (a *Args) Float(name string) float64 {
	switch v := a.values[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (a *Args) Int(name string) int {
	switch v := a.values[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (a *Args) Strings(name string) []string {
	switch v := a.values[name].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}
	return nil
}

// Positional returns positional arguments not bound to a declared name.
func (a *Args) Positional() []string { return a.positional }

// Map returns a copy of all values, for logging and hooks.
func (a *Args) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// FlagSet builds the pflag set for m's named arguments plus --help/-h and
// --format.
func (m *Manifest) FlagSet() (*pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(m.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	fs.BoolP("help", "h", false, "Show usage and exit")
	fs.String("format", "", "Output format {json, human}")

	for _, a := range m.Arguments {
		if a.Positional {
			continue
		}
		if err := addFlag(fs, a); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func addFlag(fs *pflag.FlagSet, a Argument) error {
	switch a.kind() {
	case TypeBoolean:
		def, _ := a.Default.(bool)
		fs.BoolP(a.Name, a.Short, def, a.Description)
	case TypeNumber:
		def, err := toFloat(a.Default)
		if err != nil {
			return fmt.Errorf("argument %q default: %w", a.Name, err)
		}
		fs.Float64P(a.Name, a.Short, def, a.Description)
	case TypeInteger:
		def, err := toFloat(a.Default)
		if err != nil {
			return fmt.Errorf("argument %q default: %w", a.Name, err)
		}
		fs.IntP(a.Name, a.Short, int(def), a.Description)
	case TypeArray:
		fs.StringSliceP(a.Name, a.Short, toStrings(a.Default), a.Description)
	default:
		def := ""
		if a.Default != nil {
			def = fmt.Sprint(a.Default)
		}
		fs.StringP(a.Name, a.Short, def, a.Description)
	}
	return nil
}

// WantsHelp reports whether args ask for usage. Anything after "--" is not
// inspected.
func WantsHelp(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

// Parse parses args against m. Failures are returned as VALIDATION_ERROR or
// MISSING_ARGUMENT skill errors. When help is requested nothing else is
// validated.
func (m *Manifest) Parse(args []string) (*Args, error) {
	out := &Args{values: map[string]any{}, set: map[string]bool{}}
	if WantsHelp(args) {
		out.Help = true
		return out, nil
	}
	if m.loose {
		return parseLoose(args, out), nil
	}

	fs, err := m.FlagSet()
	if err != nil {
		return nil, skillerr.New(skillerr.SchemaMismatch, fmt.Sprintf("manifest for %s: %v", m.Name, err))
	}
	if err := fs.Parse(args); err != nil {
		return nil, skillerr.New(skillerr.ValidationError, err.Error(), skillerr.WithCause(err))
	}
	out.Format, _ = fs.GetString("format")

	for _, a := range m.Arguments {
		if a.Positional {
			continue
		}
		v, err := flagValue(fs, a)
		if err != nil {
			return nil, skillerr.New(skillerr.ValidationError, err.Error(), skillerr.WithCause(err))
		}
		changed := fs.Changed(a.Name)
		if a.Required && !changed && a.Default == nil {
			return nil, skillerr.New(skillerr.MissingArgument, "--"+a.Name,
				skillerr.WithContext(map[string]any{"argument": a.Name}))
		}
		out.set[a.Name] = changed
		if !changed && a.Default == nil && a.kind() != TypeBoolean {
			continue
		}
		out.values[a.Name] = v
		if err := checkChoices(a, v); err != nil {
			return nil, err
		}
	}

	if err := m.bindPositional(fs.Args(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manifest) bindPositional(rest []string, out *Args) error {
	i := 0
	for _, a := range m.Arguments {
		if !a.Positional {
			continue
		}
		if a.kind() == TypeArray {
			vals := append([]string{}, rest[i:]...)
			i = len(rest)
			if len(vals) == 0 {
				if a.Required {
					return skillerr.New(skillerr.MissingArgument, "<"+a.Name+">",
						skillerr.WithContext(map[string]any{"argument": a.Name}))
				}
				continue
			}
			out.values[a.Name] = vals
			out.set[a.Name] = true
			continue
		}
		if i >= len(rest) {
			if a.Required {
				return skillerr.New(skillerr.MissingArgument, "<"+a.Name+">",
					skillerr.WithContext(map[string]any{"argument": a.Name}))
			}
			if a.Default != nil {
				out.values[a.Name] = fmt.Sprint(a.Default)
			}
			continue
		}
		v := rest[i]
		i++
		if err := checkChoices(a, v); err != nil {
			return err
		}
		out.values[a.Name] = v
		out.set[a.Name] = true
	}
	if i < len(rest) {
		return skillerr.New(skillerr.ValidationError,
			fmt.Sprintf("unexpected argument %q", rest[i]))
	}
	return nil
}

func parseLoose(args []string, out *Args) *Args {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			out.positional = append(out.positional, args[i+1:]...)
			return out
		case strings.HasPrefix(a, "--format="):
			out.Format = strings.TrimPrefix(a, "--format=")
		case a == "--format" && i+1 < len(args):
			out.Format = args[i+1]
			i++
		default:
			out.positional = append(out.positional, a)
		}
	}
	return out
}

func flagValue(fs *pflag.FlagSet, a Argument) (any, error) {
	switch a.kind() {
	case TypeBoolean:
		return fs.GetBool(a.Name)
	case TypeNumber:
		return fs.GetFloat64(a.Name)
	case TypeInteger:
		return fs.GetInt(a.Name)
	case TypeArray:
		return fs.GetStringSlice(a.Name)
	default:
		return fs.GetString(a.Name)
	}
}

func checkChoices(a Argument, v any) error {
	if len(a.Choices) == 0 {
		return nil
	}
	var vals []string
	switch x := v.(type) {
	case []string:
		vals = x
	default:
		vals = []string{fmt.Sprint(x)}
	}
	for _, s := range vals {
		if !slices.Contains(a.Choices, s) {
			return skillerr.New(skillerr.ValidationError,
				fmt.Sprintf("%s must be one of %s (got %q)", a.Name, strings.Join(a.Choices, ", "), s),
				skillerr.WithContext(map[string]any{"argument": a.Name, "choices": a.Choices}))
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return []string{fmt.Sprint(x)}
	}
}
