package benchmark

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a benchmark seed.
type seedFile struct {
	Version string  `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// LoadFile reads a YAML benchmark seed and builds a snapshot.
// Sub-sample entries are dropped silently, matching the published-
// benchmark contract.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark seed %q: %w", path, err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse benchmark seed %q: %w", path, err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("benchmark seed %q: %w", path, ErrMissingVersion)
	}

	return NewSnapshot(f.Version, f.Entries), nil
}
