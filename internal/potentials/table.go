// Package potentials serves the standard-reduction-potential table used for
// cell voltage calculation. The table is loaded once at startup and is
// read-only afterwards.
package potentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tableFile = "tabelas/tabela_potenciais.json"

// NotFoundError reports an electrode name with no table entry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no standard potential for %q", e.Name)
}

// Table maps lowercased metal names to E° in volts.
type Table struct {
	entries map[string]float64
	names   []string // sorted keys, for deterministic substring fallback
}

type tableRecord struct {
	Metal     string   `json:"metal"`
	Potencial *float64 `json:"potencial"`
}

// NewTable builds a table from a name→potential map. Names are lowercased.
func NewTable(entries map[string]float64) *Table {
	t := &Table{entries: make(map[string]float64, len(entries))}
	for name, potential := range entries {
		t.entries[strings.ToLower(name)] = potential
	}
	for name := range t.entries {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

// Load reads the potentials file under dir. A missing or malformed file
// degrades to an empty table; every lookup will then miss.
func Load(dir string) *Table {
	path := filepath.Join(dir, tableFile)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Potentials table unavailable", "path", path, "error", err)
		return NewTable(nil)
	}

	var records []tableRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("Malformed potentials table", "path", path, "error", err)
		return NewTable(nil)
	}

	entries := make(map[string]float64, len(records))
	for _, rec := range records {
		if rec.Metal == "" || rec.Potencial == nil {
			continue
		}
		entries[strings.ToLower(rec.Metal)] = *rec.Potencial
	}

	t := NewTable(entries)
	slog.Info("Potentials table loaded", "entries", t.Len())
	return t
}

// Len returns the number of loaded entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup resolves an electrode name to its standard potential. It tries an
// exact match first, then falls back to substring containment against the
// table keys so partial names like "prata" match "prata (ag+)".
func (t *Table) Lookup(name string) (float64, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if potential, ok := t.entries[name]; ok {
		return potential, true
	}
	for _, key := range t.names {
		if strings.Contains(key, name) && name != "" {
			return t.entries[key], true
		}
	}
	return 0, false
}

// CellVoltage resolves both electrode names and computes the cell voltage.
// The electrode with the higher potential is the cathode;
// voltage = E°(cathode) − E°(anode).
func (t *Table) CellVoltage(a, b string) (cathode, anode string, volts float64, err error) {
	potA, ok := t.Lookup(a)
	if !ok {
		return "", "", 0, &NotFoundError{Name: a}
	}
	potB, ok := t.Lookup(b)
	if !ok {
		return "", "", 0, &NotFoundError{Name: b}
	}

	if potA >= potB {
		return a, b, potA - potB, nil
	}
	return b, a, potB - potA, nil
}
