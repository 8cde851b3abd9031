// Package manifest reads approval stage manifests.
//
// A stage manifest is a CSV file that declares the approval chain of each
// subject kind. It lets deployments customize the chain without rebuilding:
// a department that skips the Student Welfare review, for example, can ship
// a manifest with four booking stages.
//
// CSV format:
//
//	kind,stage,role
//	proposals,Club,club_president
//	proposals,Faculty Advisor,faculty_advisor
//	bookings,Club,club_president
//	bookings,Security,security_officer
//
// Rows are ordered by approval sequence within each kind. Kinds may be
// interleaved; only the relative order of rows of the same kind matters.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// StageEntry represents a single row in the stage manifest CSV.
type StageEntry struct {
	// Kind is the subject collection the stage belongs to (e.g., "proposals").
	Kind string

	// Stage is the display name of the stage (e.g., "Faculty Advisor").
	Stage string

	// Role is the approver role expected to act at this stage. Optional.
	Role string
}

// Manifest holds all stage entries parsed from a manifest CSV file.
type Manifest struct {
	// Entries are the stage entries in file order.
	Entries []StageEntry
}

// ReadFromFile reads and parses a stage manifest CSV file.
func ReadFromFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

// ReadFromString parses a stage manifest from a CSV string.
// This is useful for testing and for embedding manifest data.
func ReadFromString(data string) (*Manifest, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	var entries []StageEntry
	lineNum := 1 // header was line 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", lineNum, err)
		}

		entry := StageEntry{
			Kind:  getField(record, colIndex, "kind"),
			Stage: getField(record, colIndex, "stage"),
			Role:  getField(record, colIndex, "role"),
		}

		if entry.Kind == "" {
			return nil, fmt.Errorf("manifest line %d: kind is required", lineNum)
		}
		if entry.Stage == "" {
			return nil, fmt.Errorf("manifest line %d: stage name is required", lineNum)
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no stage entries")
	}

	return &Manifest{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in the manifest CSV.
var requiredColumns = []string{"kind", "stage"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("manifest missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Kinds returns the unique subject kinds in order of first appearance.
func (m *Manifest) Kinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, e := range m.Entries {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// EntriesForKind returns the stage entries of a kind in approval order.
func (m *Manifest) EntriesForKind(kind string) []StageEntry {
	var entries []StageEntry
	for _, e := range m.Entries {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}
	return entries
}

// StageNames returns the stage names of a kind in approval order.
func (m *Manifest) StageNames(kind string) []string {
	entries := m.EntriesForKind(kind)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Stage
	}
	return names
}

// HasKind returns true if the manifest declares stages for the given kind.
func (m *Manifest) HasKind(kind string) bool {
	for _, e := range m.Entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
