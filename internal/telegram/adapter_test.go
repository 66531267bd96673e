package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("hello")
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("x", maxTelegramMessage*2+10)
	parts := splitMessage(long)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	for i, part := range parts[:2] {
		if len(part) != maxTelegramMessage {
			t.Errorf("part %d length = %d", i, len(part))
		}
	}
	if len(parts[2]) != 10 {
		t.Errorf("last part length = %d", len(parts[2]))
	}
}

func TestChatIDFromKey(t *testing.T) {
	chatID, err := chatIDFromKey(buildSessionKey(7, 42))
	if err != nil {
		t.Fatal(err)
	}
	if chatID != 42 {
		t.Errorf("chatID = %d", chatID)
	}

	if _, err := chatIDFromKey("webhook:deploy"); err == nil {
		t.Error("expected error for non-telegram key")
	}
}
