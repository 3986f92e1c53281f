package pgvector

import "testing"

func TestEncodeEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		want      string
		wantValid bool
	}{
		{name: "nil embedding", embedding: nil, wantValid: false},
		{name: "empty slice", embedding: []float32{}, wantValid: false},
		{name: "single element", embedding: []float32{0.5}, want: "[0.5]", wantValid: true},
		{name: "multiple elements", embedding: []float32{0.1, 0.2, 0.3}, want: "[0.1,0.2,0.3]", wantValid: true},
		{name: "negative values", embedding: []float32{-0.5, 0.5, -1.0}, want: "[-0.5,0.5,-1]", wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeEmbedding(tt.embedding)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if got.Valid && got.String != tt.want {
				t.Errorf("String = %q, want %q", got.String, tt.want)
			}
		})
	}
}

func TestAddCollectionFilter(t *testing.T) {
	t.Run("empty path is a no-op", func(t *testing.T) {
		query, args, argNum := addCollectionFilter("SELECT 1", nil, 1, "")
		if query != "SELECT 1" || len(args) != 0 || argNum != 1 {
			t.Errorf("expected no-op, got query=%q args=%v argNum=%d", query, args, argNum)
		}
	})

	t.Run("appends placeholders and args", func(t *testing.T) {
		query, args, argNum := addCollectionFilter("SELECT 1", nil, 2, "docs/team-a")
		if argNum != 4 {
			t.Errorf("argNum = %d, want 4", argNum)
		}
		if len(args) != 2 || args[0] != "docs/team-a" || args[1] != "docs/team-a/%" {
			t.Errorf("args = %v, unexpected", args)
		}
	})
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one migration")
	}
	if migrations[0].ID != "0001_entries" {
		t.Errorf("first migration ID = %q, want 0001_entries", migrations[0].ID)
	}
	if migrations[0].UpSQL == "" {
		t.Error("expected migration SQL to be loaded")
	}
}
