package potentials

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func testTable() *Table {
	return NewTable(map[string]float64{
		"cobre":       0.34,
		"zinco":       -0.76,
		"prata (ag+)": 0.80,
	})
}

func TestLookupExactThenSubstring(t *testing.T) {
	table := testTable()

	if got, ok := table.Lookup("Cobre"); !ok || got != 0.34 {
		t.Errorf("exact lookup = (%v, %v), want (0.34, true)", got, ok)
	}
	if got, ok := table.Lookup("prata"); !ok || got != 0.80 {
		t.Errorf("substring lookup = (%v, %v), want (0.80, true)", got, ok)
	}
	if _, ok := table.Lookup("ouro"); ok {
		t.Error("expected miss for unknown electrode")
	}
	if _, ok := table.Lookup(""); ok {
		t.Error("expected miss for empty name")
	}
}

func TestCellVoltage(t *testing.T) {
	table := testTable()

	cathode, anode, volts, err := table.CellVoltage("cobre", "zinco")
	if err != nil {
		t.Fatalf("CellVoltage failed: %v", err)
	}
	if cathode != "cobre" || anode != "zinco" {
		t.Errorf("expected cathode cobre / anode zinco, got %s / %s", cathode, anode)
	}
	if math.Abs(volts-1.10) > 1e-9 {
		t.Errorf("expected 1.10 V, got %.4f", volts)
	}
}

func TestCellVoltageCommutative(t *testing.T) {
	table := testTable()

	c1, a1, v1, err1 := table.CellVoltage("cobre", "zinco")
	c2, a2, v2, err2 := table.CellVoltage("zinco", "cobre")
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if c1 != c2 || a1 != a2 || v1 != v2 {
		t.Errorf("electrode order changed the result: (%s,%s,%v) vs (%s,%s,%v)", c1, a1, v1, c2, a2, v2)
	}
}

func TestCellVoltageReportsMissingName(t *testing.T) {
	table := testTable()

	_, _, _, err := table.CellVoltage("cobre", "ouro")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "ouro" {
		t.Errorf("expected missing name ouro, got %q", nf.Name)
	}
}

func TestLoadFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabelas", "tabela_potenciais.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	content := `[
		{"metal": "Zinco", "potencial": -0.76},
		{"metal": "Cobre", "potencial": 0.34},
		{"metal": "SemPotencial"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	table := Load(dir)

	if table.Len() != 2 {
		t.Errorf("expected 2 entries (malformed skipped), got %d", table.Len())
	}
	if got, ok := table.Lookup("zinco"); !ok || got != -0.76 {
		t.Errorf("expected zinco -0.76, got (%v, %v)", got, ok)
	}
}

func TestLoadMissingFileYieldsEmptyTable(t *testing.T) {
	table := Load(t.TempDir())

	if table.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", table.Len())
	}
}
