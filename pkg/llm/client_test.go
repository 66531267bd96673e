package llm

import (
	"errors"
	"testing"
)

func TestNewResolvesFamilyFromModel(t *testing.T) {
	cases := []struct {
		model string
		want  ProtocolFamily
	}{
		{"gpt-4o", FamilyChat},
		{"gpt-5-codex", FamilyResponses},
		{"some-new-model", FamilyChat},
	}
	for _, tc := range cases {
		c, err := New(Config{Model: tc.model, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", tc.model, err)
		}
		if c.Family() != tc.want {
			t.Errorf("New(%q).Family() = %q, want %q", tc.model, c.Family(), tc.want)
		}
	}
}

func TestNewModeOverridesDetection(t *testing.T) {
	c, err := New(Config{Model: "gpt-4o", APIKey: "k", Mode: "responses"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Family() != FamilyResponses {
		t.Errorf("mode override ignored: %q", c.Family())
	}

	c, err = New(Config{Model: "gpt-5-codex", APIKey: "k", Mode: "chat"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Family() != FamilyChat {
		t.Errorf("mode override ignored: %q", c.Family())
	}
}

func TestNewFamilyOverridePatterns(t *testing.T) {
	c, err := New(Config{
		Model:    "acme-large",
		APIKey:   "k",
		Families: map[string]ProtocolFamily{"acme-": FamilyResponses},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Family() != FamilyResponses {
		t.Errorf("family override ignored: %q", c.Family())
	}
}

func TestNewDisabledFamily(t *testing.T) {
	_, err := New(Config{
		Model:    "gpt-5-codex",
		APIKey:   "k",
		Disabled: []ProtocolFamily{FamilyResponses},
	})
	var ume *UnsupportedModelError
	if !errors.As(err, &ume) {
		t.Fatalf("expected UnsupportedModelError, got %v", err)
	}

	// Forcing a disabled family by mode fails the same way.
	_, err = New(Config{
		Model:    "gpt-4o",
		APIKey:   "k",
		Mode:     "chat",
		Disabled: []ProtocolFamily{FamilyChat},
	})
	if !errors.As(err, &ume) {
		t.Fatalf("expected UnsupportedModelError, got %v", err)
	}
}
