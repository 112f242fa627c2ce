package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestRecord is one row of the rolling per-entity-type index.
type ManifestRecord struct {
	ID            string
	Status        string
	ReleaseTarget string
	Priority      string
	LastUpdated   string
	LastRunID     string
}

// Manifest maintains a markdown manifest with one "## <entity-type>"
// section per entity type. A write replaces only its own section and
// preserves every other byte of the file.
type Manifest struct {
	path string
}

// NewManifest creates a manifest writer for the given file path.
func NewManifest(path string) *Manifest {
	return &Manifest{path: path}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

const manifestHeader = "# Manifest\n"

// UpdateSection replaces the section for entityType with the given
// records. Calling it twice with the same input yields identical bytes.
// Problems in unrelated sections are reported as warnings, never as
// errors: this section is still written.
func (m *Manifest) UpdateSection(entityType string, records []ManifestRecord) ([]string, error) {
	var warnings []string

	existing, err := os.ReadFile(m.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	content := string(existing)
	if content == "" {
		content = manifestHeader
	}

	lines := strings.Split(content, "\n")
	heading := "## " + entityType

	// Locate this section's bounds. Duplicate headings for the same
	// section indicate a malformed manifest; the first wins and the
	// duplicates are left untouched but flagged.
	start, end := -1, len(lines)
	for i, line := range lines {
		if strings.TrimRight(line, " ") == heading {
			if start == -1 {
				start = i
				for j := i + 1; j < len(lines); j++ {
					if strings.HasPrefix(lines[j], "## ") {
						end = j
						break
					}
				}
			} else {
				warnings = append(warnings, fmt.Sprintf("duplicate %q heading at line %d left untouched", heading, i+1))
			}
		}
	}

	section := renderSection(entityType, records)

	var out []string
	if start == -1 {
		// Append a new section at the end.
		out = lines
		for len(out) > 0 && out[len(out)-1] == "" {
			out = out[:len(out)-1]
		}
		out = append(out, "")
		out = append(out, section...)
		out = append(out, "")
	} else {
		out = append(out, lines[:start]...)
		out = append(out, section...)
		if end < len(lines) {
			out = append(out, "")
			out = append(out, lines[end:]...)
		} else {
			out = append(out, "")
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0750); err != nil {
		return warnings, fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(strings.Join(out, "\n")), 0600); err != nil {
		return warnings, fmt.Errorf("write manifest: %w", err)
	}
	return warnings, nil
}

// ReadSection parses the records of one section. Missing sections yield
// an empty slice.
func (m *Manifest) ReadSection(entityType string) ([]ManifestRecord, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	heading := "## " + entityType

	var records []ManifestRecord
	inSection := false
	for _, line := range lines {
		if strings.TrimRight(line, " ") == heading {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(line, "## ") {
			break
		}
		if !inSection || !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitRow(line)
		if len(cells) != 6 || cells[0] == "id" || strings.HasPrefix(cells[0], "--") {
			continue
		}
		records = append(records, ManifestRecord{
			ID:            cells[0],
			Status:        cells[1],
			ReleaseTarget: cells[2],
			Priority:      cells[3],
			LastUpdated:   cells[4],
			LastRunID:     cells[5],
		})
	}
	return records, nil
}

func renderSection(entityType string, records []ManifestRecord) []string {
	sorted := make([]ManifestRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	lines := []string{
		"## " + entityType,
		"",
		"| id | status | release | priority | last_updated | last_run |",
		"| --- | --- | --- | --- | --- | --- |",
	}
	for _, r := range sorted {
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %s |",
			r.ID, r.Status, r.ReleaseTarget, r.Priority, r.LastUpdated, r.LastRunID))
	}
	return lines
}

func splitRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
