package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePathGuard(t *testing.T) {
	root := t.TempDir()

	valid := []string{"", ".", "file.txt", "sub/file.txt", "./sub/../file.txt"}
	for _, p := range valid {
		if _, err := resolvePath(root, p); err != nil {
			t.Errorf("resolvePath(%q) rejected a valid path: %v", p, err)
		}
	}

	escapes := []string{"..", "../outside", "../../etc/passwd", "sub/../../../x"}
	for _, p := range escapes {
		if _, err := resolvePath(root, p); err == nil {
			t.Errorf("resolvePath(%q) allowed an escape", p)
		} else if !strings.Contains(err.Error(), "outside the workspace") {
			t.Errorf("resolvePath(%q) error = %v", p, err)
		}
	}
}

func runTool(t *testing.T, tool Tool, args map[string]any) map[string]any {
	t.Helper()
	out, err := tool.Fn(context.Background(), args)
	if err != nil {
		t.Fatalf("%s: %v", tool.Name, err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("%s output is not JSON: %v\n%s", tool.Name, err, out)
	}
	return result
}

func TestFileToolsRoundTrip(t *testing.T) {
	root := t.TempDir()
	write := NewWriteFileTool(root)
	read := NewReadFileTool(root)
	del := NewDeleteFileTool(root)

	result := runTool(t, write, map[string]any{"path": "docs/notes.md", "content": "line one\nline two"})
	if result["created"] != true {
		t.Error("first write not reported as created")
	}
	if result["bytes"] != float64(len("line one\nline two")) {
		t.Errorf("bytes = %v", result["bytes"])
	}

	result = runTool(t, read, map[string]any{"path": "docs/notes.md"})
	if result["content"] != "line one\nline two" {
		t.Errorf("content = %q", result["content"])
	}
	if result["line_count"] != float64(2) || result["truncated"] != false {
		t.Errorf("line_count=%v truncated=%v", result["line_count"], result["truncated"])
	}

	// Overwrite is not a creation.
	result = runTool(t, write, map[string]any{"path": "docs/notes.md", "content": "replaced"})
	if result["created"] != false {
		t.Error("overwrite reported as created")
	}

	result = runTool(t, del, map[string]any{"path": "docs/notes.md"})
	if result["deleted"] != true {
		t.Error("delete not confirmed")
	}
	if _, err := del.Fn(context.Background(), map[string]any{"path": "docs/notes.md"}); err == nil {
		t.Error("deleting a missing file succeeded")
	}
	if _, err := del.Fn(context.Background(), map[string]any{"path": "docs"}); err == nil ||
		!strings.Contains(err.Error(), "is a directory") {
		t.Errorf("deleting a directory: %v", err)
	}
}

func TestReadFileTruncatesLongFiles(t *testing.T) {
	root := t.TempDir()
	lines := make([]string, 2005)
	for i := range lines {
		lines[i] = "x"
	}
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatal(err)
	}

	result := runTool(t, NewReadFileTool(root), map[string]any{"path": "big.txt"})
	if result["truncated"] != true {
		t.Fatal("long file not truncated")
	}
	if result["line_count"] != float64(2005) {
		t.Errorf("line_count = %v", result["line_count"])
	}
	if !strings.Contains(result["content"].(string), "[truncated, 5 more lines]") {
		t.Error("truncation marker missing")
	}
}

func TestListFilesHonorsIgnoreSet(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"a.go", "sub/b.go", ".git/config", "node_modules/pkg/index.js"} {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list := NewListFilesTool(root)

	result := runTool(t, list, map[string]any{"recursive": true})
	files, _ := result["files"].([]any)
	got := make(map[string]bool, len(files))
	for _, f := range files {
		got[f.(string)] = true
	}
	if !got["a.go"] || !got[filepath.Join("sub", "b.go")] {
		t.Errorf("workspace files missing from listing: %v", files)
	}
	if got[filepath.Join(".git", "config")] || got[filepath.Join("node_modules", "pkg", "index.js")] {
		t.Errorf("ignored files leaked into listing: %v", files)
	}

	// Limit clamps the listing and flags the cut.
	result = runTool(t, list, map[string]any{"recursive": true, "limit": float64(1)})
	files, _ = result["files"].([]any)
	if len(files) != 1 || result["truncated"] != true {
		t.Errorf("limit ignored: %d files, truncated=%v", len(files), result["truncated"])
	}
}

func TestListFilesNonRecursive(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	result := runTool(t, NewListFilesTool(root), map[string]any{})
	files, _ := result["files"].([]any)
	got := make(map[string]bool, len(files))
	for _, f := range files {
		got[f.(string)] = true
	}
	if !got["a.go"] || !got["sub/"] {
		t.Errorf("listing = %v, want a.go and sub/", files)
	}
	if result["recursive"] != false {
		t.Error("recursive flag wrong")
	}
}
