package postgres

import "testing"

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db?sslmode=disable": "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"postgresql://u:p@localhost:5432/db":               "pgx5://u:p@localhost:5432/db",
		"pgx5://u:p@localhost/db":                          "pgx5://u:p@localhost/db",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, name := range []string{"migrations/000001_init.up.sql", "migrations/000001_init.down.sql"} {
		b, err := migrationsFS.ReadFile(name)
		if err != nil || len(b) == 0 {
			t.Fatalf("missing embedded migration %s: %v", name, err)
		}
	}
}
