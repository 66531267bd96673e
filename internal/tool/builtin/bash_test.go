package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestBashExecute(t *testing.T) {
	b := NewBash("")
	args, _ := json.Marshal(map[string]string{"command": "echo hello"})
	result, err := b.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(result) != "hello" {
		t.Errorf("output = %q", result)
	}
}

func TestBashMissingCommand(t *testing.T) {
	b := NewBash("")
	if _, err := b.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestBashWorkdir(t *testing.T) {
	dir := t.TempDir()
	b := NewBash(dir)
	args, _ := json.Marshal(map[string]string{"command": "pwd"})
	result, err := b.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.TrimSpace(result), dir) {
		t.Errorf("pwd = %q, want %q", result, dir)
	}
}

func TestBashFailureIncludesOutput(t *testing.T) {
	b := NewBash("")
	args, _ := json.Marshal(map[string]any{"command": "echo oops >&2; exit 3"})
	output, err := b.Execute(context.Background(), args)
	if err == nil {
		t.Fatal("expected error for failing command")
	}
	if !strings.Contains(output, "oops") {
		t.Errorf("captured output = %q", output)
	}
}

func TestBashTimeout(t *testing.T) {
	b := NewBash("")
	args, _ := json.Marshal(map[string]any{"command": "sleep 10", "timeout_seconds": 1})
	if _, err := b.Execute(context.Background(), args); err == nil {
		t.Fatal("expected timeout error")
	}
}
