package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a single Definition from a YAML file.
func LoadFromFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read pipeline file %s: %w", path, err)
	}

	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse pipeline file %s: %w", path, err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate pipeline file %s: %w", path, err)
	}

	return &d, nil
}

// LoadFromDirectory reads all .yaml/.yml files from a directory. A missing
// directory yields no definitions. Files that fail to load are returned in
// the joined error; the valid ones are still returned.
func LoadFromDirectory(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pipeline directory %s: %w", dir, err)
	}

	var (
		defs []Definition
		errs []error
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		d, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, *d)
	}

	return defs, errors.Join(errs...)
}
