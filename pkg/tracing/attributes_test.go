package tracing

import (
	"testing"

	"github.com/google/uuid"
)

func TestAttrServerKindNormalizesValue(t *testing.T) {
	attr := AttrServerKind("  Lobby  ")
	if attr.Value.AsString() != "lobby" {
		t.Fatalf("expected lobby, got %s", attr.Value.AsString())
	}

	attr = AttrServerKind("Sky Wars Ranked")
	if attr.Value.AsString() != "sky_wars_ranked" {
		t.Fatalf("expected sky_wars_ranked, got %s", attr.Value.AsString())
	}
}

func TestAttrsForServer(t *testing.T) {
	id := uuid.MustParse("2f9c8c0a-3a4c-4f2a-96a1-6f45f2f9c8c0")

	attrs := AttrsForServer(id, "lobby")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Value.AsString() != id.String() {
		t.Fatalf("expected server id attribute, got %s", attrs[0].Value.AsString())
	}
	if attrs[1].Value.AsString() != "lobby" {
		t.Fatalf("expected kind attribute, got %s", attrs[1].Value.AsString())
	}

	attrs = AttrsForServer(uuid.Nil, "")
	if len(attrs) != 0 {
		t.Fatalf("expected no attributes for zero values, got %d", len(attrs))
	}
}

func TestNormalizeDimensionValue(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"Lobby", "lobby"},
		{"bed wars", "bed_wars"},
		{"\tmixed Case words\t", "mixed_case_words"},
	}
	for _, tc := range cases {
		if got := normalizeDimensionValue(tc.input); got != tc.want {
			t.Fatalf("normalizeDimensionValue(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
