package migrations_test

import (
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"testing"

	"derroche/migrations"
)

func upMigrations(t *testing.T) []string {
	t.Helper()
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}
	sort.Strings(names)
	return names
}

func TestMigrationsArePaired(t *testing.T) {
	for _, up := range upMigrations(t) {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migrations.FS, down); err != nil {
			t.Errorf("%s has no %s", up, down)
		}
	}
}

// Values typed by users or returned by the extraction service are stored
// verbatim, so their columns must not carry a length limit.
func TestFreeTextColumnsAreUnbounded(t *testing.T) {
	for _, column := range []string{"tipo_gasto", "categoria", "banco", "descripcion", "metodo_pago"} {
		t.Run(column, func(t *testing.T) {
			decl := regexp.MustCompile(`(?i)\b` + column + `\s+(?:TYPE\s+)?(TEXT|VARCHAR\(\d+\))`)

			final := ""
			for _, name := range upMigrations(t) {
				data, err := fs.ReadFile(migrations.FS, name)
				if err != nil {
					t.Fatalf("failed to read %s: %v", name, err)
				}
				for _, m := range decl.FindAllStringSubmatch(string(data), -1) {
					final = strings.ToUpper(m[1])
				}
			}
			if final != "TEXT" {
				t.Errorf("expected %s to end up as TEXT, got %q", column, final)
			}
		})
	}
}
