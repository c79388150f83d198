// Package workspace inspects and watches the directory a task runs in.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind labels what lives in a workspace so prompts and the sandbox can
// describe it.
type Kind string

const (
	KindGo      Kind = "go"
	KindNode    Kind = "node"
	KindPython  Kind = "python"
	KindRust    Kind = "rust"
	KindUnknown Kind = "unknown"
)

// DetectKind classifies a workspace, manifest files first, file extensions
// as a fallback.
func DetectKind(dir string) Kind {
	manifests := []struct {
		file string
		kind Kind
	}{
		{"go.mod", KindGo},
		{"package.json", KindNode},
		{"pyproject.toml", KindPython},
		{"requirements.txt", KindPython},
		{"Cargo.toml", KindRust},
	}
	for _, m := range manifests {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.kind
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return KindUnknown
	}

	counts := make(map[Kind]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".go":
			counts[KindGo]++
		case ".ts", ".tsx", ".js", ".jsx":
			counts[KindNode]++
		case ".py":
			counts[KindPython]++
		case ".rs":
			counts[KindRust]++
		}
	}

	best, bestCount := KindUnknown, 0
	for kind, count := range counts {
		if count > bestCount {
			best, bestCount = kind, count
		}
	}
	// A couple of stray files is not a signal.
	if bestCount < 3 {
		return KindUnknown
	}
	return best
}

// Describe renders a short workspace summary for the system prompts: the
// absolute path, the detected kind, and the top-level entries.
func Describe(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Workspace: %s\n", abs)
	fmt.Fprintf(&sb, "Type: %s\n", DetectKind(dir))

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		sb.WriteString("Contents: (empty)")
		return sb.String()
	}

	sb.WriteString("Top-level contents:")
	shown := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if shown >= 25 {
			fmt.Fprintf(&sb, "\n  ... and %d more", len(entries)-shown)
			break
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		fmt.Fprintf(&sb, "\n  %s", name)
		shown++
	}
	return sb.String()
}
