package checksum

import "testing"

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Error("same input should digest identically")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different inputs should digest differently")
	}
}

func TestKey_SeparatorKeepsPartsDistinct(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("part boundaries must affect the key")
	}
	if Key("a", "b") != Key("a", "b") {
		t.Error("same parts should produce the same key")
	}
}
