package msgcat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedMessagesRender(t *testing.T) {
	c := MustDefault()
	cases := []struct {
		key  string
		data any
		want string
	}{
		{"status.not_started", nil, `Click "New Game" to start playing`},
		{"status.checkmate", map[string]any{"Winner": "Black"}, "Checkmate! Black wins!"},
		{"status.check", map[string]any{"Side": "White"}, "White is in check"},
		{"status.turn", map[string]any{"Side": "Black"}, "Black to move"},
		{"status.draw", map[string]any{"Reasons": []string{"Stalemate"}}, "Game ended in a draw (Stalemate)"},
		{"status.draw", map[string]any{"Reasons": []string(nil)}, "Game ended in a draw"},
		{"label.castle", nil, "Castle"},
	}
	for _, tc := range cases {
		got, err := c.Render(tc.key, tc.data)
		if err != nil {
			t.Fatalf("Render(%s): %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("Render(%s): got %q want %q", tc.key, got, tc.want)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("status.nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Render("status.turn", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("status.nope", nil); got != "status.nope" {
		t.Fatalf("Text fallback: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "status:\n  turn: \"{{.Side}} plays\"\n")
	write("notes.txt", "ignored")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("status.turn", map[string]any{"Side": "White"}); got != "White plays" {
		t.Fatalf("override: %q", got)
	}
	if got := c.Text("label.check", nil); got != "Check" {
		t.Fatalf("default kept: %q", got)
	}

	write("b.yml", "status:\n  turn: again\n")
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
