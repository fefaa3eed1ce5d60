package reader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return path
}

func TestLines(t *testing.T) {
	path := writeInput(t, "input.txt", "alpha\nbeta\n\ngamma\n")

	items, err := Lines(path, true)
	if err != nil {
		t.Fatalf("Lines failed: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i] != w {
			t.Errorf("items[%d] = %v, want %q", i, items[i], w)
		}
	}
}

func TestLines_KeepBlank(t *testing.T) {
	path := writeInput(t, "input.txt", "alpha\n\nbeta\n")

	items, err := Lines(path, false)
	if err != nil {
		t.Fatalf("Lines failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[1] != "" {
		t.Errorf("items[1] = %v, want empty line", items[1])
	}
}

func TestLines_PreallocatesFromLineCount(t *testing.T) {
	path := writeInput(t, "items.txt", "a\nb\nc\n")

	items, err := Lines(path, true)
	if err != nil {
		t.Fatalf("Lines failed: %v", err)
	}
	if cap(items) != 3 {
		t.Errorf("cap(items) = %d, want 3", cap(items))
	}
}

func TestLines_FileNotFound(t *testing.T) {
	_, err := Lines("/nonexistent/input.txt", true)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCSV_ExplicitDelimiter(t *testing.T) {
	path := writeInput(t, "input.csv", "insee;name\n33063;Bordeaux\n75056;Paris\n")

	items, err := CSV(path, ";")
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d rows, want 2", len(items))
	}
	row := items[0].(map[string]any)
	if row["insee"] != "33063" || row["name"] != "Bordeaux" {
		t.Errorf("row[0] = %v", row)
	}
}

func TestCSV_SniffedDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"comma", "insee,name\n33063,Bordeaux\n"},
		{"semicolon", "insee;name\n33063;Bordeaux\n"},
		{"tab", "insee\tname\n33063\tBordeaux\n"},
		{"pipe", "insee|name\n33063|Bordeaux\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeInput(t, "input.csv", tt.content)
			items, err := CSV(path, "")
			if err != nil {
				t.Fatalf("CSV failed: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("got %d rows, want 1", len(items))
			}
			row := items[0].(map[string]any)
			if row["insee"] != "33063" || row["name"] != "Bordeaux" {
				t.Errorf("row = %v", row)
			}
		})
	}
}

func TestCSV_HeaderOnly(t *testing.T) {
	path := writeInput(t, "input.csv", "insee,name\n")

	items, err := CSV(path, ",")
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d rows from header-only file, want 0", len(items))
	}
}

func TestCSV_MultiCharDelimiterRejected(t *testing.T) {
	path := writeInput(t, "input.csv", "a,b\n1,2\n")
	if _, err := CSV(path, ";;"); err == nil {
		t.Fatal("expected error for multi-character delimiter")
	}
}

func TestCSV_RaggedRowRejected(t *testing.T) {
	path := writeInput(t, "input.csv", "a,b\n1,2,3\n")
	if _, err := CSV(path, ","); err == nil {
		t.Fatal("expected error for row with extra fields")
	}
}

func TestLoad_DispatchByExtension(t *testing.T) {
	csvPath := writeInput(t, "input.csv", "a,b\n1,2\n")
	items, err := Load(csvPath, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := items[0].(map[string]any); !ok {
		t.Errorf("csv input should yield maps, got %T", items[0])
	}

	txtPath := writeInput(t, "input.txt", "one\ntwo\n")
	items, err = Load(txtPath, Options{SkipBlank: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := items[0].(string); !ok {
		t.Errorf("line input should yield strings, got %T", items[0])
	}
}

func TestFileLen(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"one line", "alpha\n", 1},
		{"no trailing newline", "alpha\nbeta", 2},
		{"three lines", "a\nb\nc\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeInput(t, "input.txt", tt.content)
			got, err := FileLen(path)
			if err != nil {
				t.Fatalf("FileLen failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("FileLen = %d, want %d", got, tt.want)
			}
		})
	}
}
