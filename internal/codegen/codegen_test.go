package codegen

import (
	"regexp"
	"testing"
)

var (
	lookupCodeShape = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	recordIDShape   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

func TestLookupCode_Shape(t *testing.T) {
	g := New()
	for i := 0; i < 1000; i++ {
		code := g.LookupCode()
		if !lookupCodeShape.MatchString(code) {
			t.Fatalf("LookupCode() = %q, want match for %s", code, lookupCodeShape)
		}
	}
}

func TestRecordID_Shape(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		id := g.RecordID()
		if !recordIDShape.MatchString(id) {
			t.Fatalf("RecordID() = %q, want v4 UUID shape", id)
		}
	}
}

func TestNewSeeded_Deterministic(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)

	for i := 0; i < 10; i++ {
		if got, want := a.LookupCode(), b.LookupCode(); got != want {
			t.Fatalf("draw %d: %q != %q with equal seeds", i, got, want)
		}
	}
	if a.RecordID() != b.RecordID() {
		t.Error("RecordID differs with equal seeds")
	}
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"MYCODE01", true},
		{"ABC123", true},
		{"ABCDEF789012", true},
		{"ABC12", false},         // too short
		{"ABCDEF7890123", false}, // too long
		{"mycode01", false},      // lowercase
		{"MY CODE1", false},      // space
		{"MY-CODE1", false},      // punctuation
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidCode(tt.code); got != tt.want {
			t.Errorf("ValidCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
