// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if id == "" {
		t.Error("expected non-empty SessionID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestSessionKeyFormat(t *testing.T) {
	key := NewSessionKey("telegram", "123", "456")
	expected := SessionKey("telegram:123:456")
	if key != expected {
		t.Errorf("expected %s, got %s", expected, key)
	}
}

func TestSessionKeyChannel(t *testing.T) {
	cases := []struct {
		key  SessionKey
		want string
	}{
		{NewSessionKey("telegram", "123", "456"), "telegram"},
		{NewSessionKey("webhook", "deploy"), "webhook"},
		{SessionKey("cli"), "cli"},
	}
	for _, tc := range cases {
		if got := tc.key.Channel(); got != tc.want {
			t.Errorf("Channel(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
