// Package results persists the outcome of the last CLI invocation.
package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/stealthbrowse/internal/batch"
)

// Write stores r as indented JSON at path, replacing any previous file. The
// content is written to a temporary file in the same directory first so a
// reader never sees a partial result.
func Write(path string, r batch.Result) error {
	data, err := batch.Marshal(r, true)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

// Read loads a result previously stored by Write.
func Read(path string) (batch.Result, error) {
	var r batch.Result
	expanded, err := homedir.Expand(path)
	if err != nil {
		return r, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return r, err
	}
	if err := batch.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return r, nil
}

func writeAtomic(path string, data []byte) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary result file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Windows cannot rename over an existing file.
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return fmt.Errorf("failed to write %s: %w", path, werr)
		}
	}
	return nil
}
