package jsonldb

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type testRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTable(t *testing.T) (*Table[testRow], string) {
	path := filepath.Join(t.TempDir(), "sub", "test.jsonl")
	table, err := NewTable[testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, path
}

func TestTable(t *testing.T) {
	t.Run("Append and reload", func(t *testing.T) {
		table, path := setupTable(t)
		if table.Len() != 0 {
			t.Fatalf("Len() = %d, want 0", table.Len())
		}
		rows := []testRow{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}}
		for _, r := range rows {
			if err := table.Append(r); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		if got := slices.Collect(table.All()); !slices.Equal(got, rows) {
			t.Errorf("All() = %+v, want %+v", got, rows)
		}

		table2, err := NewTable[testRow](path)
		if err != nil {
			t.Fatalf("re-loading table failed: %v", err)
		}
		if got := slices.Collect(table2.All()); !slices.Equal(got, rows) {
			t.Errorf("re-loaded rows = %+v, want %+v", got, rows)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		table, path := setupTable(t)
		if err := table.Append(testRow{ID: 1, Name: "One"}); err != nil {
			t.Fatal(err)
		}
		newRows := []testRow{{ID: 3, Name: "Three"}}
		if err := table.Replace(newRows); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		if table.Len() != 1 {
			t.Errorf("Len() = %d, want 1", table.Len())
		}
		table2, err := NewTable[testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		if got := slices.Collect(table2.All()); !slices.Equal(got, newRows) {
			t.Errorf("Replace failed to update file: %+v", got)
		}
		matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
		if len(matches) != 0 {
			t.Errorf("temporary files left behind: %v", matches)
		}
	})

	t.Run("truncated trailing row", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.jsonl")
		content := "{\"id\":1,\"name\":\"One\"}\n{\"id\":2,\"na"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		table, err := NewTable[testRow](path)
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if got := slices.Collect(table.All()); !slices.Equal(got, []testRow{{ID: 1, Name: "One"}}) {
			t.Errorf("All() = %+v", got)
		}
	})

	t.Run("corrupted row", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.jsonl")
		if err := os.WriteFile(path, []byte("not json\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewTable[testRow](path); err == nil {
			t.Error("expected error for corrupted row")
		}
	})

	t.Run("All stops early", func(t *testing.T) {
		table, _ := setupTable(t)
		for i := range 5 {
			if err := table.Append(testRow{ID: i}); err != nil {
				t.Fatal(err)
			}
		}
		n := 0
		for range table.All() {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d rows, want 2", n)
		}
	})
}
