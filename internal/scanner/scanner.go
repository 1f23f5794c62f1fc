// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scanner lists the files under a knowledge root.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source says how a file list was obtained.
type Source string

const (
	SourceGit  Source = "git"
	SourceWalk Source = "walk"
)

// Scanner provides the files under a root, caching the list for the
// instance lifetime. Paths are relative to the root and slash-separated.
type Scanner struct {
	root   string
	useGit bool

	mu     sync.Mutex
	cache  []string
	source Source
}

// New creates a Scanner that walks root.
func New(root string) *Scanner {
	return &Scanner{root: root}
}

// NewGitAware creates a Scanner that asks git for tracked files first, so
// ignored files are skipped, and walks the tree when git is unavailable or
// root is not inside a work tree.
func NewGitAware(root string) *Scanner {
	return &Scanner{root: root, useGit: true}
}

// Root returns the scanned directory.
func (s *Scanner) Root() string { return s.root }

// Files returns every regular file under the root.
func (s *Scanner) Files(ctx context.Context) ([]string, Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		return s.cache, s.source, nil
	}

	if s.useGit {
		files, err := trackedFiles(ctx, s.root)
		if err == nil {
			s.cache, s.source = files, SourceGit
			return s.cache, s.source, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	files, err := walk(ctx, s.root)
	if err != nil {
		return nil, "", err
	}
	s.cache, s.source = files, SourceWalk
	return s.cache, s.source, nil
}

// FilesFiltered returns the files matching opts and how the full list was obtained.
func (s *Scanner) FilesFiltered(ctx context.Context, opts FilterOptions) ([]string, Source, error) {
	all, source, err := s.Files(ctx)
	if err != nil {
		return nil, "", err
	}
	return FilterFiles(all, opts), source, nil
}

// KnowledgeFiles returns documents under the root, applying default excludes.
func (s *Scanner) KnowledgeFiles(ctx context.Context) ([]string, error) {
	files, _, err := s.FilesFiltered(ctx, FilterOptions{
		ExcludeDirs:       DefaultExcludeDirs(),
		IncludeExtensions: DefaultExtensions(),
	})
	return files, err
}

func trackedFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	if len(out) == 0 {
		return []string{}, nil
	}
	files := strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00")
	sort.Strings(files)
	return files, nil
}

func walk(ctx context.Context, root string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
