package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

const (
	maxReadLines    = 2000
	maxListEntries  = 500
	defaultListMax  = 200
	listIgnoreLines = ".git/\n.cowork/\nnode_modules/\n__pycache__/"
)

// resolvePath joins a model-supplied relative path onto the workspace root
// and rejects anything that escapes it.
func resolvePath(workspaceDir, path string) (string, error) {
	full := filepath.Clean(filepath.Join(workspaceDir, path))
	root := filepath.Clean(workspaceDir)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the workspace", path)
	}
	return full, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return v, nil
}

// NewReadFileTool reads a workspace file. Very long files come back
// truncated with a marker rather than flooding the context.
func NewReadFileTool(workspaceDir string) Tool {
	return Tool{
		Name:        "read_file",
		Description: "Read the content of a file in the task workspace. The path is relative to the workspace root.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path relative to the workspace root"}},"required":["path"]}`,
		Metadata:    Metadata{Category: "filesystem", Tags: []string{"read-only", "idempotent"}},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return "", err
			}
			full, err := resolvePath(workspaceDir, path)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(full)
			if err != nil {
				return "", err
			}

			content := string(data)
			lines := strings.Split(content, "\n")
			truncated := false
			if len(lines) > maxReadLines {
				content = strings.Join(lines[:maxReadLines], "\n") +
					fmt.Sprintf("\n... [truncated, %d more lines]", len(lines)-maxReadLines)
				truncated = true
			}

			result := map[string]any{
				"path":       path,
				"content":    content,
				"line_count": len(lines),
				"truncated":  truncated,
			}
			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewWriteFileTool writes a file, creating parent directories as needed.
func NewWriteFileTool(workspaceDir string) Tool {
	return Tool{
		Name:        "write_file",
		Description: "Write content to a file in the task workspace. Creates the file and any missing directories; overwrites existing content.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path relative to the workspace root"},"content":{"type":"string","description":"Content to write"}},"required":["path","content"]}`,
		Metadata:    Metadata{Category: "filesystem", Tags: []string{"write", "side-effect"}},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return "", err
			}
			content, err := stringArg(args, "content")
			if err != nil {
				return "", err
			}
			full, err := resolvePath(workspaceDir, path)
			if err != nil {
				return "", err
			}

			_, statErr := os.Stat(full)
			created := os.IsNotExist(statErr)

			if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
				return "", fmt.Errorf("failed to create directory: %w", err)
			}
			if err := os.WriteFile(full, []byte(content), 0644); err != nil {
				return "", fmt.Errorf("failed to write file: %w", err)
			}

			result := map[string]any{
				"path":    path,
				"bytes":   len(content),
				"created": created,
			}
			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewListFilesTool lists workspace entries, honoring the default ignore set.
func NewListFilesTool(workspaceDir string) Tool {
	matcher := gitignore.CompileIgnoreLines(strings.Split(listIgnoreLines, "\n")...)

	return Tool{
		Name:        "list_files",
		Description: "List files in the task workspace. Optionally recursive from a subdirectory.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Directory relative to the workspace root (default: the root)"},"recursive":{"type":"boolean","description":"Recurse into subdirectories"},"limit":{"type":"integer","description":"Maximum entries to return"}},"required":[]}`,
		Metadata:    Metadata{Category: "filesystem", Tags: []string{"read-only", "idempotent"}},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			recursive, _ := args["recursive"].(bool)
			limit := defaultListMax
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
				if limit > maxListEntries {
					limit = maxListEntries
				}
			}

			full, err := resolvePath(workspaceDir, path)
			if err != nil {
				return "", err
			}

			var files []string
			truncated := false

			if recursive {
				err = filepath.WalkDir(full, func(walkPath string, d fs.DirEntry, werr error) error {
					if werr != nil {
						return nil
					}
					rel, rerr := filepath.Rel(workspaceDir, walkPath)
					if rerr != nil || rel == "." {
						return nil
					}
					if matcher.MatchesPath(rel) {
						if d.IsDir() {
							return filepath.SkipDir
						}
						return nil
					}
					if d.IsDir() {
						return nil
					}
					files = append(files, rel)
					if len(files) >= limit {
						truncated = true
						return filepath.SkipAll
					}
					return nil
				})
				if err != nil {
					return "", err
				}
			} else {
				entries, rerr := os.ReadDir(full)
				if rerr != nil {
					return "", rerr
				}
				for _, entry := range entries {
					rel := entry.Name()
					if path != "" {
						rel = filepath.Join(path, entry.Name())
					}
					if matcher.MatchesPath(rel) {
						continue
					}
					name := rel
					if entry.IsDir() {
						name += "/"
					}
					files = append(files, name)
					if len(files) >= limit {
						truncated = true
						break
					}
				}
			}

			result := map[string]any{
				"path":      path,
				"files":     files,
				"recursive": recursive,
				"truncated": truncated,
			}
			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewDeleteFileTool removes a single file from the workspace.
func NewDeleteFileTool(workspaceDir string) Tool {
	return Tool{
		Name:        "delete_file",
		Description: "Delete a file from the task workspace.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path relative to the workspace root"}},"required":["path"]}`,
		Metadata:    Metadata{Category: "filesystem", Tags: []string{"write", "side-effect"}},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return "", err
			}
			full, err := resolvePath(workspaceDir, path)
			if err != nil {
				return "", err
			}

			info, err := os.Stat(full)
			if err != nil {
				return "", err
			}
			if info.IsDir() {
				return "", fmt.Errorf("%s is a directory", path)
			}
			if err := os.Remove(full); err != nil {
				return "", fmt.Errorf("failed to delete file: %w", err)
			}

			result := map[string]any{"path": path, "deleted": true}
			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
