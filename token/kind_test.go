package token

import "testing"

func TestWrapPreservesValue(t *testing.T) {
	v, err := Generate(DefaultSize)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	a := Wrap[Auth](v)
	r := Wrap[Refresh](v)
	if !a.Value().Equal(v) || !r.Value().Equal(v) {
		t.Fatal("Wrap must carry the value unchanged")
	}
}

func TestParseKinds(t *testing.T) {
	a, err := GenerateAuth(16)
	if err != nil {
		t.Fatalf("GenerateAuth: %v", err)
	}
	parsed, err := ParseAuth(a.Encode())
	if err != nil {
		t.Fatalf("ParseAuth: %v", err)
	}
	if !parsed.Value().Equal(a.Value()) {
		t.Fatal("ParseAuth round trip mismatch")
	}

	r, err := GenerateRefresh(16)
	if err != nil {
		t.Fatalf("GenerateRefresh: %v", err)
	}
	pr, err := ParseRefresh(r.Encode())
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if !pr.Value().Equal(r.Value()) {
		t.Fatal("ParseRefresh round trip mismatch")
	}

	if _, err := ParseRefresh("%%%"); err == nil {
		t.Fatal("expected error for malformed refresh text")
	}
}

func TestZeroTokens(t *testing.T) {
	var a Auth
	var r Refresh
	if !a.IsZero() || !r.IsZero() {
		t.Fatal("zero tokens must report IsZero")
	}
}
