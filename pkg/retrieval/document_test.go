package retrieval

import "testing"

func TestHashContent_Deterministic(t *testing.T) {
	a := HashContent("hello world")
	b := HashContent("hello world")
	if a != b {
		t.Errorf("HashContent not deterministic: %q vs %q", a, b)
	}
}

func TestHashContent_DiffersOnChange(t *testing.T) {
	a := HashContent("hello world")
	b := HashContent("hello world!")
	if a == b {
		t.Error("expected different hashes for different content")
	}
}

func TestHashContent_EmptyContent(t *testing.T) {
	if HashContent("") == "" {
		t.Error("expected a non-empty hash for empty content")
	}
}
