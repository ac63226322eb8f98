/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/document"
	"github.com/valpere/novtran/internal/store"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if dir := filepath.Dir(cfg.Paths.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.Paths.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// outputWorkspace describes a novel's directories without requiring the
// source directory to exist.
func outputWorkspace(cfg *config.Config, novel string) *document.Workspace {
	return &document.Workspace{
		DocumentID:   novel,
		SourceDir:    filepath.Join(cfg.Paths.SourceRoot, novel),
		OutputDir:    filepath.Join(cfg.Paths.OutputRoot, novel),
		OutputPrefix: cfg.OutputPrefix,
		SourceExt:    cfg.SourceExt,
	}
}

// parseRange parses "a-b" into an inclusive range.
func parseRange(s string) ([2]int, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return [2]int{}, fmt.Errorf("invalid range %q, want a-b", s)
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(lo))
	b, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err := errors.Join(err1, err2); err != nil {
		return [2]int{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if a < 1 || b < a {
		return [2]int{}, fmt.Errorf("invalid range %q", s)
	}
	return [2]int{a, b}, nil
}

// compactRanges renders sorted indices as "1-3, 5, 7-8".
func compactRanges(indices []int) string {
	if len(indices) == 0 {
		return "-"
	}
	var parts []string
	start, prev := indices[0], indices[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, i := range indices[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		flush()
		start, prev = i, i
	}
	flush()
	return strings.Join(parts, ", ")
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func requireNovel(novel string) error {
	if strings.TrimSpace(novel) == "" {
		return errors.New("--novel is required")
	}
	return nil
}
