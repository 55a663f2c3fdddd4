package homebase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Save writes the table as YAML.
func Save(path string, t *Table) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding homebase table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing homebase table: %w", err)
	}
	return nil
}

// Load reads a YAML table and checks its entry count.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading homebase table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing homebase table: %w", err)
	}
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("homebase table %s has no entries", path)
	}
	if int(t.Metadata.EntryCount) != len(t.Entries) {
		return nil, fmt.Errorf("homebase table %s: entry_count %d but %d entries",
			path, t.Metadata.EntryCount, len(t.Entries))
	}
	return &t, nil
}
