package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFilesAreOrdered(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) == 0 || files[0] != "0001_init.up.sql" {
		t.Fatalf("files = %v", files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Fatalf("files out of order: %v", files)
		}
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	for file, tables := range map[string][]string{
		"0001_init.up.sql":             {"oai_sets", "records"},
		"0002_maintenance_runs.up.sql": {"maintenance_runs"},
	} {
		body, err := fs.ReadFile(FS, file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		for _, table := range tables {
			if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Errorf("%s: missing table %s", file, table)
			}
		}
	}
}
