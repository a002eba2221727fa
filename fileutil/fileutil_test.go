package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeNewlines(t *testing.T) {
	t.Parallel()

	got := SanitizeNewlines("a\r\nb\rc\nd")
	if got != `a\nb\nc\nd` {
		t.Fatalf("sanitized=%q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("  hello  ", 10); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello…" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Fatalf("max=0 should not truncate, got %q", got)
	}
}

func TestWriteJSONFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := WriteJSONFileAtomic(path, map[string]int{"n": 3}, false); err != nil {
		t.Fatalf("write json: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "{\"n\":3}\n" {
		t.Fatalf("content=%q", string(b))
	}

	// Overwrite with pretty output.
	if err := WriteJSONFileAtomic(path, map[string]int{"n": 4}, true); err != nil {
		t.Fatalf("rewrite json: %v", err)
	}
	b, _ = os.ReadFile(path)
	if string(b) != "{\n  \"n\": 4\n}\n" {
		t.Fatalf("pretty content=%q", string(b))
	}

	// No temp files should survive.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, found %d entries", len(entries))
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	if FileExists(path) {
		t.Fatalf("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !FileExists(path) {
		t.Fatalf("existing file reported as missing")
	}
}

func TestDecodeModelJSON(t *testing.T) {
	t.Parallel()

	type out struct {
		Order []int `json:"order"`
	}

	var v out
	if err := DecodeModelJSON(`{"order":[2,0,1]}`, &v); err != nil {
		t.Fatalf("plain json: %v", err)
	}
	if len(v.Order) != 3 || v.Order[0] != 2 {
		t.Fatalf("decoded %+v", v)
	}

	v = out{}
	if err := DecodeModelJSON("Here you go:\n```json\n{\"order\":[1]}\n```", &v); err != nil {
		t.Fatalf("wrapped json: %v", err)
	}
	if len(v.Order) != 1 || v.Order[0] != 1 {
		t.Fatalf("decoded %+v", v)
	}

	if err := DecodeModelJSON("", &v); err == nil {
		t.Fatalf("empty input should fail")
	}
	if err := DecodeModelJSON("no json here", &v); err == nil {
		t.Fatalf("non-json input should fail")
	}
}
