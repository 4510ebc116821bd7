// Package output writes decoded contextual profiles and derived artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ctxprof/internal/ctxprof"
)

// Report is the machine-readable result of decoding one container.
type Report struct {
	Path    string          `json:"path"`
	Summary ctxprof.Summary `json:"summary"`
	Diags   []ctxprof.Diag  `json:"diags,omitempty"`
}

// WriteReportJSON writes r as indented JSON.
func WriteReportJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("output: encode report: %w", err)
	}
	return nil
}

// WriteDOT writes a rendered graph to dir/name.dot. name may contain path
// separators for directory grouping.
func WriteDOT(dir, name, dot string) (string, error) {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// Create opens path for writing, or returns stdout for "" and "-". The
// returned close function is safe to call for stdout.
func Create(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return f, f.Close, nil
}
